package tours

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-tours/resource"
)

// ErrorHandlerConfig configures the response formatter installed as the
// fiber error handler
type ErrorHandlerConfig struct {
	Production bool
	Logger     Logger
}

// NewErrorHandler formats every error that reaches the boundary.
// Development responses expose the full error, production responses
// only the message of operational errors.
func NewErrorHandler(cfg ErrorHandlerConfig) fiber.ErrorHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = defaultLogger("errors")
	}

	return func(c *fiber.Ctx, err error) error {
		err = normalizeError(c, err)

		if cfg.Production {
			return sendProdError(c, logger, ToOperational(err))
		}
		return sendDevError(c, logger, err)
	}
}

// normalizeError turns fiber errors into app errors. Unmatched routes
// reach here as a 404 "Cannot METHOD /path" or as a 405 when only the
// method differs, both answer 404.
func normalizeError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return err
	}

	unmatched := fe.Code == fiber.StatusNotFound && strings.HasPrefix(fe.Message, "Cannot ")
	if unmatched || fe == fiber.ErrMethodNotAllowed {
		return NewAppError(NotFoundMessage(c.OriginalURL()), fiber.StatusNotFound)
	}
	return NewAppError(fe.Message, fe.Code)
}

// ToOperational maps known library failures to operational errors with
// client safe messages. Unknown errors are returned unchanged.
func ToOperational(err error) error {
	if cast, ok := resource.AsCastError(err); ok {
		return NewAppError(fmt.Sprintf("Invalid %s: %s", cast.Path, cast.Value), errors.CodeBadRequest)
	}

	if dup, ok := resource.AsDuplicateKeyError(err); ok {
		return NewAppError(duplicateMessage(dup.Value), errors.CodeBadRequest)
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return err
	}

	switch richErr.TextCode {
	case resource.TextCodeCastError:
		return NewAppError(fmt.Sprintf("Invalid %v: %v", richErr.Metadata["path"], richErr.Metadata["value"]), errors.CodeBadRequest)
	case resource.TextCodeDuplicateKey:
		return NewAppError(duplicateMessage(richErr.Metadata["value"]), errors.CodeBadRequest)
	case TextCodeTokenMalformed:
		return NewAppError(MsgInvalidToken, errors.CodeUnauthorized)
	case TextCodeTokenExpired:
		return NewAppError(MsgExpiredToken, errors.CodeUnauthorized)
	}

	if richErr.Category == errors.CategoryValidation || len(richErr.ValidationErrors) > 0 {
		return NewAppError(validationMessage(richErr), errors.CodeBadRequest)
	}

	return err
}

func duplicateMessage(value any) string {
	return fmt.Sprintf("Duplicate field value %v. Please use another value!", value)
}

func validationMessage(richErr *errors.Error) string {
	fields := slices.Clone(richErr.ValidationErrors)
	slices.SortStableFunc(fields, func(a, b errors.FieldError) int {
		return strings.Compare(a.Field, b.Field)
	})

	msgs := make([]string, 0, len(fields))
	for _, fe := range fields {
		if m := strings.TrimSuffix(strings.TrimSpace(fe.Message), "."); m != "" {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 {
		return "Invalid input data."
	}
	return "Invalid input data. " + strings.Join(msgs, ". ")
}

func sendProdError(c *fiber.Ctx, logger Logger, err error) error {
	if !IsOperational(err) {
		logUnexpected(c, logger, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  StatusClass(fiber.StatusInternalServerError),
			"message": MsgGenericFailure,
		})
	}

	code := StatusCode(err)
	return c.Status(code).JSON(fiber.Map{
		"status":  StatusClass(code),
		"message": errorMessage(err),
	})
}

func sendDevError(c *fiber.Ctx, logger Logger, err error) error {
	code := StatusCode(err)
	if code >= fiber.StatusInternalServerError {
		logUnexpected(c, logger, err)
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  StatusClass(code),
		"error":   describeError(err),
		"message": errorMessage(err),
		"stack":   errorChain(err),
	})
}

func errorMessage(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Message
	}
	return err.Error()
}

func describeError(err error) fiber.Map {
	out := fiber.Map{
		"operational": IsOperational(err),
		"statusCode":  StatusCode(err),
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		out["source"] = err.Error()
		return out
	}

	out["category"] = richErr.Category
	out["textCode"] = richErr.TextCode
	if len(richErr.Metadata) > 0 {
		out["metadata"] = richErr.Metadata
	}
	if len(richErr.ValidationErrors) > 0 {
		out["validationErrors"] = richErr.ValidationErrors
	}
	return out
}

// errorChain lists the message of err and of every error it wraps
func errorChain(err error) []string {
	chain := []string{}
	for e := err; e != nil && len(chain) < 32; {
		chain = append(chain, fmt.Sprintf("%T: %s", e, e.Error()))
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return chain
}

func logUnexpected(c *fiber.Ctx, logger Logger, err error) {
	args := []any{
		"error", err.Error(),
		"method", c.Method(),
		"path", c.Path(),
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		args = append(args,
			"category", richErr.Category,
			"text_code", richErr.TextCode,
		)
		if len(richErr.Metadata) > 0 {
			args = append(args, "details", print.MaybePrettyJSON(richErr.Metadata))
		}
	}

	logger.Error("unexpected error", args...)
}
