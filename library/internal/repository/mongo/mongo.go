package mongo

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/pkg/mongodb"
)

const (
	booksCollection        = "books"
	usersCollection        = "users"
	reservationsCollection = "reservations"
)

func EnsureIndexes(ctx context.Context, db *mongodb.DB) error {
	if _, err := db.Database.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return errors.Wrap(err, "users.email")
	}
	if _, err := db.Database.Collection(booksCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "disabled", Value: 1}},
	}); err != nil {
		return errors.Wrap(err, "books.disabled")
	}
	if _, err := db.Database.Collection(reservationsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "bookId", Value: 1}, {Key: "userId", Value: 1}, {Key: "returnDate", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		// at most one open reservation per book
		{
			Keys: bson.D{{Key: "bookId", Value: 1}},
			Options: options.Index().
				SetName("open_book_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"returnDate": bson.M{"$type": "null"}}),
		},
	}); err != nil {
		return errors.Wrap(err, "reservations")
	}
	return nil
}

func mapErr(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return notFound
	case mongo.IsDuplicateKeyError(err):
		return errs.ErrConflict
	}
	return err
}

func after() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}
