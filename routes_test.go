package tours_test

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-tours"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tourBody(name string, price float64) map[string]any {
	return map[string]any{
		"name":         name,
		"duration":     5,
		"maxGroupSize": 25,
		"difficulty":   "easy",
		"price":        price,
		"summary":      "Breathtaking hike through the Canadian Banff National Park",
		"imageCover":   "tour-1-cover.jpg",
	}
}

func createTour(t *testing.T, env *testEnv, token, name string, price float64) map[string]any {
	t.Helper()
	resp := env.do(t, request{method: fiber.MethodPost, path: "/api/v1/tours", token: token, body: tourBody(name, price)})
	require.Equal(t, fiber.StatusCreated, resp.code, resp.raw)
	return resp.body["data"].(map[string]any)["data"].(map[string]any)
}

func TestTourRoutes(t *testing.T) {
	env := newTestEnv(t, testConfig{production: true})
	member := env.token(t, env.seedUser(t, "member@example.com", "pass1234", tours.RoleUser))
	lead := env.token(t, env.seedUser(t, "lead@example.com", "pass1234", tours.RoleLeadGuide))

	t.Run("create requires staff", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodPost, path: "/api/v1/tours", token: member, body: tourBody("The Forest Hiker", 397)})
		assert.Equal(t, fiber.StatusForbidden, resp.code)

		resp = env.do(t, request{method: fiber.MethodPost, path: "/api/v1/tours", body: tourBody("The Forest Hiker", 397)})
		assert.Equal(t, fiber.StatusUnauthorized, resp.code)
	})

	tour := createTour(t, env, lead, "The Forest Hiker", 397)
	assert.Equal(t, "the-forest-hiker", tour["slug"])
	assert.EqualValues(t, 4.5, tour["ratingsAverage"])

	t.Run("duplicate name", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodPost, path: "/api/v1/tours", token: lead, body: tourBody("The Forest Hiker", 100)})
		assert.Equal(t, fiber.StatusBadRequest, resp.code)
		assert.Equal(t, "Duplicate field value The Forest Hiker. Please use another value!", resp.message())
	})

	t.Run("invalid tour", func(t *testing.T) {
		body := tourBody("Short", 100)
		body["difficulty"] = "extreme"
		resp := env.do(t, request{method: fiber.MethodPost, path: "/api/v1/tours", token: lead, body: body})

		assert.Equal(t, fiber.StatusBadRequest, resp.code)
		assert.Contains(t, resp.message(), "Invalid input data.")
		assert.Contains(t, resp.message(), "difficulty must be one of: easy, medium, difficult")
	})

	t.Run("public get", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodGet, path: "/api/v1/tours/" + tour["id"].(string)})
		require.Equal(t, fiber.StatusOK, resp.code, resp.raw)
		assert.Equal(t, "The Forest Hiker", resp.body["data"].(map[string]any)["data"].(map[string]any)["name"])
	})

	t.Run("malformed id", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodGet, path: "/api/v1/tours/wrong-id"})
		assert.Equal(t, fiber.StatusBadRequest, resp.code)
		assert.Equal(t, "Invalid id: wrong-id", resp.message())
	})

	t.Run("missing id", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodGet, path: "/api/v1/tours/" + uuid.NewString()})
		assert.Equal(t, fiber.StatusNotFound, resp.code)
		assert.Equal(t, "No document found with that ID", resp.message())
	})

	t.Run("update and delete", func(t *testing.T) {
		id := tour["id"].(string)
		resp := env.do(t, request{method: fiber.MethodPatch, path: "/api/v1/tours/" + id, token: lead, body: map[string]any{"price": 500}})
		require.Equal(t, fiber.StatusOK, resp.code, resp.raw)
		assert.EqualValues(t, 500, resp.body["data"].(map[string]any)["data"].(map[string]any)["price"])

		resp = env.do(t, request{method: fiber.MethodDelete, path: "/api/v1/tours/" + id, token: lead})
		assert.Equal(t, fiber.StatusNoContent, resp.code)

		resp = env.do(t, request{method: fiber.MethodGet, path: "/api/v1/tours/" + id})
		assert.Equal(t, fiber.StatusNotFound, resp.code)
	})
}

func TestTopFiveCheap(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	lead := env.token(t, env.seedUser(t, "lead@example.com", "pass1234", tours.RoleLeadGuide))

	for i := 0; i < 7; i++ {
		createTour(t, env, lead, fmt.Sprintf("The Sea Explorer %d", i), float64(100+i))
	}

	resp := env.do(t, request{method: fiber.MethodGet, path: "/api/v1/tours/top-5-cheap"})
	require.Equal(t, fiber.StatusOK, resp.code, resp.raw)
	assert.EqualValues(t, 5, resp.body["results"])
	assert.EqualValues(t, 7, resp.body["total"])
}

func TestTourQueryWhitelist(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	lead := env.token(t, env.seedUser(t, "lead@example.com", "pass1234", tours.RoleLeadGuide))

	for name, difficulty := range map[string]string{
		"The Forest Hiker":    "easy",
		"The Sea Explorer":    "medium",
		"The Snow Adventurer": "difficult",
	} {
		body := tourBody(name, 397)
		body["difficulty"] = difficulty
		resp := env.do(t, request{method: fiber.MethodPost, path: "/api/v1/tours", token: lead, body: body})
		require.Equal(t, fiber.StatusCreated, resp.code, resp.raw)
	}

	resp := env.do(t, request{method: fiber.MethodGet, path: "/api/v1/tours?difficulty=easy&difficulty=medium"})
	require.Equal(t, fiber.StatusOK, resp.code, resp.raw)
	assert.EqualValues(t, 2, resp.body["total"])

	resp = env.do(t, request{method: fiber.MethodGet, path: "/api/v1/tours?name=The%20Forest%20Hiker&name=The%20Sea%20Explorer"})
	require.Equal(t, fiber.StatusOK, resp.code, resp.raw)
	assert.EqualValues(t, 1, resp.body["total"])
	list := resp.body["data"].(map[string]any)["data"].([]any)
	assert.Equal(t, "The Sea Explorer", list[0].(map[string]any)["name"])
}

func TestReviewRoutes(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	memberUser := env.seedUser(t, "member@example.com", "pass1234", tours.RoleUser)
	member := env.token(t, memberUser)
	admin := env.token(t, env.seedUser(t, "admin@example.com", "pass1234", tours.RoleAdmin))

	first := createTour(t, env, admin, "The Forest Hiker", 397)
	second := createTour(t, env, admin, "The Snow Adventurer", 997)

	nested := func(tour map[string]any) string {
		return "/api/v1/tours/" + tour["id"].(string) + "/reviews"
	}

	t.Run("requires a session", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodGet, path: "/api/v1/reviews"})
		assert.Equal(t, fiber.StatusUnauthorized, resp.code)
	})

	t.Run("only users write reviews", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodPost, path: nested(first), token: admin, body: map[string]any{
			"review": "Great", "rating": 5,
		}})
		assert.Equal(t, fiber.StatusForbidden, resp.code)
	})

	resp := env.do(t, request{method: fiber.MethodPost, path: nested(first), token: member, body: map[string]any{
		"review": "Amazing tour", "rating": 5,
	}})
	require.Equal(t, fiber.StatusCreated, resp.code, resp.raw)
	review := resp.body["data"].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, first["id"], review["tour"])
	assert.Equal(t, memberUser.ID.String(), review["user"])

	resp = env.do(t, request{method: fiber.MethodPost, path: nested(second), token: member, body: map[string]any{
		"review": "Cold but fun", "rating": 4,
	}})
	require.Equal(t, fiber.StatusCreated, resp.code, resp.raw)

	t.Run("nested list is scoped to the tour", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodGet, path: nested(first), token: member})
		require.Equal(t, fiber.StatusOK, resp.code, resp.raw)
		assert.EqualValues(t, 1, resp.body["results"])

		resp = env.do(t, request{method: fiber.MethodGet, path: "/api/v1/reviews", token: member})
		require.Equal(t, fiber.StatusOK, resp.code, resp.raw)
		assert.EqualValues(t, 2, resp.body["results"])
	})

	t.Run("invalid rating", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodPost, path: nested(first), token: member, body: map[string]any{
			"review": "Off the charts", "rating": 9,
		}})
		assert.Equal(t, fiber.StatusBadRequest, resp.code)
	})

	t.Run("delete by owner role", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodDelete, path: "/api/v1/reviews/" + review["id"].(string), token: member})
		assert.Equal(t, fiber.StatusNoContent, resp.code)
	})
}

func TestPages(t *testing.T) {
	env := newTestEnv(t, testConfig{})
	admin := env.token(t, env.seedUser(t, "admin@example.com", "pass1234", tours.RoleAdmin))
	createTour(t, env, admin, "The Park Camper", 1497)

	resp := env.do(t, request{method: fiber.MethodGet, path: "/"})
	require.Equal(t, fiber.StatusOK, resp.code, resp.raw)
	assert.Equal(t, "All Tours", resp.body["title"])
	assert.Len(t, resp.body["tours"], 1)

	resp = env.do(t, request{method: fiber.MethodGet, path: "/tour/the-park-camper"})
	require.Equal(t, fiber.StatusOK, resp.code, resp.raw)
	assert.Equal(t, "The Park Camper Tour", resp.body["title"])

	resp = env.do(t, request{method: fiber.MethodGet, path: "/tour/no-such-tour"})
	assert.Equal(t, fiber.StatusNotFound, resp.code)
	assert.Equal(t, tours.MsgTourNotFound, resp.message())
}

func TestAdminDeleteUserDeactivates(t *testing.T) {
	env := newTestEnv(t, testConfig{production: true})
	admin := env.token(t, env.seedUser(t, "admin@example.com", "pass1234", tours.RoleAdmin))
	member := env.seedUser(t, "member@example.com", "pass1234", tours.RoleUser)
	memberToken := env.token(t, member)

	t.Run("requires admin", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodDelete, path: "/api/v1/users/" + member.ID.String(), token: memberToken})
		assert.Equal(t, fiber.StatusForbidden, resp.code)
	})

	t.Run("malformed id", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodDelete, path: "/api/v1/users/wrong-id", token: admin})
		assert.Equal(t, fiber.StatusBadRequest, resp.code)
		assert.Equal(t, "Invalid id: wrong-id", resp.message())
	})

	t.Run("unknown id", func(t *testing.T) {
		resp := env.do(t, request{method: fiber.MethodDelete, path: "/api/v1/users/" + uuid.NewString(), token: admin})
		assert.Equal(t, fiber.StatusNotFound, resp.code)
		assert.Equal(t, "No document found with that ID", resp.message())
	})

	resp := env.do(t, request{method: fiber.MethodDelete, path: "/api/v1/users/" + member.ID.String(), token: admin})
	require.Equal(t, fiber.StatusNoContent, resp.code, resp.raw)

	stored := env.users.stored(member.ID)
	require.NotNil(t, stored, "record is kept")
	assert.False(t, stored.Active)
	assert.Contains(t, env.activity.types(), tours.ActivityEventAccountDeactivated)

	list := env.do(t, request{method: fiber.MethodGet, path: "/api/v1/users", token: admin})
	require.Equal(t, fiber.StatusOK, list.code, list.raw)
	assert.EqualValues(t, 1, list.body["results"])

	resp = env.do(t, request{method: fiber.MethodGet, path: "/api/v1/users/" + member.ID.String(), token: admin})
	assert.Equal(t, fiber.StatusNotFound, resp.code)

	resp = env.do(t, request{method: fiber.MethodGet, path: "/api/v1/users/me", token: memberToken})
	assert.Equal(t, fiber.StatusUnauthorized, resp.code)
}
