package tours

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/mailer"
)

const (
	// ResetEmailSubject is the subject of the password reset email
	ResetEmailSubject = "Your password reset token (valid for 10min)"
	// RollbackTimeout bounds clearing the reset token after a failed send
	RollbackTimeout = 5 * time.Second
)

type ForgotPasswordMessage struct {
	Email string `json:"email"`
	// ResetURL builds the link sent to the user from the plaintext token
	ResetURL func(token string) string `json:"-"`
}

func (e ForgotPasswordMessage) Type() string { return "user.password_forgot" }

type ForgotPasswordHandler struct {
	users    UserStore
	tokens   *ResetTokens
	mailer   Mailer
	activity ActivitySink
	logger   Logger
}

// NewForgotPasswordHandler creates a handler with sane defaults.
func NewForgotPasswordHandler(users UserStore, tokens *ResetTokens, m Mailer) *ForgotPasswordHandler {
	return &ForgotPasswordHandler{
		users:    users,
		tokens:   tokens,
		mailer:   m,
		activity: noopActivitySink{},
		logger:   defaultLogger("password_forgot"),
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *ForgotPasswordHandler) WithActivitySink(sink ActivitySink) *ForgotPasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ForgotPasswordHandler) WithLogger(logger Logger) *ForgotPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ForgotPasswordHandler) Execute(ctx context.Context, event ForgotPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ForgotPasswordHandler) execute(ctx context.Context, event ForgotPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.users.FindByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return NewAppError(MsgNoUserWithEmail, goerrors.CodeNotFound)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	plain, err := h.tokens.Issue(ctx, user)
	if err != nil {
		return err
	}

	link := plain
	if event.ResetURL != nil {
		link = event.ResetURL(plain)
	}

	msg := mailer.Message{
		To:      user.Email,
		Subject: ResetEmailSubject,
		Body: fmt.Sprintf(
			"Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s.\n"+
				"If you didn't forget your password, please ignore this email!",
			link,
		),
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("password reset email delivery failed", "error", err, "user_id", user.ID.String())

		// the send may have failed because ctx expired, the rollback
		// still has to reach the store
		rctx, rcancel := context.WithTimeout(context.WithoutCancel(ctx), RollbackTimeout)
		defer rcancel()

		if rerr := h.tokens.Revoke(rctx, user); rerr != nil {
			h.logger.Error("password reset rollback failed", "error", rerr, "user_id", user.ID.String())
		}
		emitActivity(rctx, h.activity, h.logger, ActivityEventPasswordResetRollback, user.ID.String(), nil)

		return NewAppError(MsgEmailFailed, goerrors.CodeInternal).
			WithTextCode(TextCodeEmailDelivery)
	}

	emitActivity(ctx, h.activity, h.logger, ActivityEventPasswordResetSent, user.ID.String(), nil)

	return nil
}
