package tours

import (
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tours/resource"
	"github.com/google/uuid"
)

// Services are the collaborators the HTTP routes are built on
type Services struct {
	Users       UserStore
	UserRecords resource.Collection[*User]
	Tours       resource.Collection[*Tour]
	Reviews     resource.Collection[*Review]
	Mailer      Mailer
	Activity    ActivitySink
	Logger      Logger
}

// ServicesFromManager collects the repositories of m
func ServicesFromManager(m RepositoryManager, mailer Mailer) Services {
	return Services{
		Users:       m.Users(),
		UserRecords: m.UserCollection(),
		Tours:       m.Tours(),
		Reviews:     m.Reviews(),
		Mailer:      mailer,
	}
}

// TopToursQuery is the preset behind the top-5-cheap alias
var TopToursQuery = map[string]string{
	"limit":  "5",
	"sort":   "-ratingsAverage,price",
	"fields": "name,price,ratingsAverage,summary,difficulty",
}

// TourQueryOptions lets the numeric and difficulty filters repeat in a
// query string, e.g. ?difficulty=easy&difficulty=medium
var TourQueryOptions = resource.QueryOptions{
	DefaultSort:  resource.DefaultQueryOptions.DefaultSort,
	DefaultLimit: resource.DefaultQueryOptions.DefaultLimit,
	MaxLimit:     resource.DefaultQueryOptions.MaxLimit,
	Whitelist: []string{
		"duration",
		"ratingsQuantity",
		"ratingsAverage",
		"maxGroupSize",
		"difficulty",
		"price",
	},
}

// RegisterRoutes mounts the API under /api/v1 and the page routes on r
func RegisterRoutes[T any](r router.Router[T], auth *RouteAuthenticator, svc Services) {
	protect := auth.Protect()
	optional := auth.OptionalIdentity()

	userHandlers := resource.New(svc.UserRecords)
	tourHandlers := resource.New(svc.Tours,
		resource.WithPopulate[*Tour]("Reviews"),
		resource.WithQueryOptions[*Tour](TourQueryOptions),
	)
	reviewHandlers := resource.New(svc.Reviews,
		resource.WithScope[*Review](scopeReviewsToTour),
		resource.WithBeforeCreate[*Review](assignReviewOwner),
	)

	controller := NewAuthController(svc.Users, auth, svc.Mailer,
		WithControllerLogger(svc.Logger),
		WithControllerActivity(svc.Activity),
		WithUserResource(userHandlers),
	)

	api := r.Group("/api/v1")

	users := api.Group("/users")
	routes := controller.Routes
	users.Post(routes.Signup, controller.Signup).SetName("users.signup")
	users.Post(routes.Login, controller.Login).SetName("users.login")
	users.Get(routes.Logout, controller.Logout).SetName("users.logout")
	users.Post(routes.ForgotPassword, controller.ForgotPassword).SetName("users.forgot_password")
	users.Patch(routes.ResetPassword, controller.ResetPassword).SetName("users.reset_password")

	users.Patch(routes.UpdatePassword, controller.UpdatePassword, protect)
	users.Get(routes.Me, controller.GetMe, protect).SetName("users.me")
	users.Patch(routes.UpdateMe, controller.UpdateMe, protect)
	users.Delete(routes.DeleteMe, controller.DeleteMe, protect)

	admin := auth.RestrictTo(RoleAdmin)
	users.Get("/", userHandlers.GetAll, protect, admin)
	users.Post("/", controller.CreateUser, protect, admin)
	users.Get("/:id", userHandlers.GetOne, protect, admin)
	users.Patch("/:id", userHandlers.UpdateOne, protect, admin)
	users.Delete("/:id", controller.DeactivateUser, protect, admin)

	staff := auth.RestrictTo(RoleAdmin, RoleLeadGuide)
	tours := api.Group("/tours")
	tours.Get("/top-5-cheap", tourHandlers.GetAllWithPreset(TopToursQuery)).SetName("tours.top_cheap")
	tours.Get("/", tourHandlers.GetAll).SetName("tours.list")
	tours.Post("/", tourHandlers.CreateOne, protect, staff)
	tours.Get("/:id", tourHandlers.GetOne).SetName("tours.get")
	tours.Patch("/:id", tourHandlers.UpdateOne, protect, staff)
	tours.Delete("/:id", tourHandlers.DeleteOne, protect, staff)

	tours.Get("/:tourId/reviews", reviewHandlers.GetAll, protect)
	tours.Post("/:tourId/reviews", reviewHandlers.CreateOne, protect, auth.RestrictTo(RoleUser))

	owners := auth.RestrictTo(RoleUser, RoleAdmin)
	reviews := api.Group("/reviews")
	reviews.Get("/", reviewHandlers.GetAll, protect)
	reviews.Post("/", reviewHandlers.CreateOne, protect, auth.RestrictTo(RoleUser))
	reviews.Get("/:id", reviewHandlers.GetOne, protect)
	reviews.Patch("/:id", reviewHandlers.UpdateOne, protect, owners)
	reviews.Delete("/:id", reviewHandlers.DeleteOne, protect, owners)

	views := NewViewsController(svc.Tours)
	r.Get("/", views.Overview, optional).SetName("views.overview")
	r.Get("/tour/:slug", views.Tour, optional).SetName("views.tour")
	r.Get("/login", views.Login, optional).SetName("views.login")
	r.Get("/me", views.Account, protect).SetName("views.account")
}

// NotFoundMessage is the message sent for requests no route matched
func NotFoundMessage(originalURL string) string {
	return "Can't find " + originalURL + " on this server!"
}

func scopeReviewsToTour(c router.Context, q *resource.Query) {
	raw := c.Param("tourId")
	if raw == "" {
		return
	}
	if id, err := uuid.Parse(raw); err == nil {
		q.Where("tour", id)
		return
	}
	q.Where("tour", raw)
}

// assignReviewOwner fills the tour from the nested route and the author
// from the signed in user when the body leaves them out
func assignReviewOwner(c router.Context, review *Review) error {
	if review.TourID == uuid.Nil {
		if id, err := uuid.Parse(c.Param("tourId")); err == nil {
			review.TourID = id
		}
	}

	if review.UserID == uuid.Nil {
		if user, ok := CurrentUser(c); ok {
			review.UserID = user.ID
		}
	}

	return nil
}
