package tours

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/resource"
	"github.com/goliatone/go-tours/store"
)

// TourPopulators resolves the tour relations a document store keeps as
// references: "Reviews" and "Reviews.Author".
func TourPopulators(reviews resource.Collection[*Review], users UserStore) []store.MongoOption[*Tour] {
	return []store.MongoOption[*Tour]{
		store.WithMongoPopulator("Reviews", populateTourReviews(reviews)),
		store.WithMongoPopulator("Reviews.Author", populateReviewAuthors(reviews, users)),
	}
}

func populateTourReviews(reviews resource.Collection[*Review]) store.MongoPopulator[*Tour] {
	return func(ctx context.Context, tour *Tour) error {
		q := resource.Query{}
		q.Where("tour", tour.ID)

		list, _, err := reviews.List(ctx, q)
		if err != nil {
			return err
		}
		tour.Reviews = list
		return nil
	}
}

// populateReviewAuthors loads the reviews first when they were not
// requested. Deactivated authors stay nil.
func populateReviewAuthors(reviews resource.Collection[*Review], users UserStore) store.MongoPopulator[*Tour] {
	loadReviews := populateTourReviews(reviews)

	return func(ctx context.Context, tour *Tour) error {
		if tour.Reviews == nil {
			if err := loadReviews(ctx, tour); err != nil {
				return err
			}
		}

		authors := map[string]*User{}
		for _, review := range tour.Reviews {
			id := review.UserID.String()
			author, ok := authors[id]
			if !ok {
				var err error
				author, err = users.FindByID(ctx, id)
				if err != nil && !errors.IsNotFound(err) {
					return err
				}
				authors[id] = author
			}
			review.Author = author
		}
		return nil
	}
}
