package tours

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tours/resource"
)

// ViewsController returns the data behind the rendered pages. Every page
// carries the optional signed in user.
type ViewsController struct {
	Tours    resource.Collection[*Tour]
	Populate []string
}

func NewViewsController(tours resource.Collection[*Tour]) *ViewsController {
	return &ViewsController{
		Tours:    tours,
		Populate: []string{"Reviews", "Reviews.Author"},
	}
}

func (v *ViewsController) Overview(c router.Context) error {
	tours, _, err := v.Tours.List(c.Context(), resource.Query{
		Sort: []resource.SortField{{Field: "createdAt", Desc: true}},
	})
	if err != nil {
		return err
	}

	return v.page(c, "overview", router.ViewContext{
		"title": "All Tours",
		"tours": tours,
	})
}

func (v *ViewsController) Tour(c router.Context) error {
	q := resource.Query{Limit: 1}
	q.Where("slug", c.Param("slug"))

	found, _, err := v.Tours.List(c.Context(), q)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return NewAppError(MsgTourNotFound, errors.CodeNotFound)
	}

	tour, err := v.Tours.Get(c.Context(), found[0].ID.String(), v.Populate...)
	if err != nil {
		return err
	}

	return v.page(c, "tour", router.ViewContext{
		"title": tour.Name + " Tour",
		"tour":  tour,
	})
}

func (v *ViewsController) Login(c router.Context) error {
	return v.page(c, "login", router.ViewContext{
		"title": "Log into your account",
	})
}

func (v *ViewsController) Account(c router.Context) error {
	return v.page(c, "account", router.ViewContext{
		"title": "Your account",
	})
}

func (v *ViewsController) page(c router.Context, name string, data router.ViewContext) error {
	data["page"] = name
	if user, ok := CurrentUser(c); ok {
		data["user"] = user
	}
	return c.JSON(router.StatusOK, data)
}
