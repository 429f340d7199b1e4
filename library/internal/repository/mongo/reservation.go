package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/Astemirdum/lending-service/pkg/mongodb"
)

type ReservationRepository struct {
	coll *mongo.Collection
	log  *zap.Logger
}

func NewReservationRepository(db *mongodb.DB, log *zap.Logger) *ReservationRepository {
	return &ReservationRepository{
		coll: db.Database.Collection(reservationsCollection),
		log:  log.Named("repo.reservations"),
	}
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, bookID, userID string, at time.Time) (model.Reservation, error) {
	res := model.Reservation{
		ID:              uuid.NewString(),
		BookID:          bookID,
		UserID:          userID,
		ReservationDate: at.UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, res); err != nil {
		return model.Reservation{}, mapErr(err, errs.ErrNotFound)
	}
	return res, nil
}

func (r *ReservationRepository) CloseReservation(ctx context.Context, bookID, userID string, at time.Time) (model.Reservation, error) {
	filter := bson.M{"bookId": bookID, "userId": userID, "returnDate": nil}
	var res model.Reservation
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"returnDate": at.UTC()}}, after()).Decode(&res)
	if err != nil {
		return model.Reservation{}, mapErr(err, errs.ErrNotFound)
	}
	return res, nil
}

func (r *ReservationRepository) ReopenReservation(ctx context.Context, id string) (model.Reservation, error) {
	filter := bson.M{"_id": id, "returnDate": bson.M{"$ne": nil}}
	var res model.Reservation
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"returnDate": nil}}, after()).Decode(&res)
	if err != nil {
		return model.Reservation{}, mapErr(err, errs.ErrNotFound)
	}
	return res, nil
}

func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *ReservationRepository) ListReservations(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error) {
	q := bson.M{}
	if filter.BookID != "" {
		q["bookId"] = filter.BookID
	}
	if filter.UserID != "" {
		q["userId"] = filter.UserID
	}
	cur, err := r.coll.Find(ctx, q, options.Find().SetSort(bson.M{"reservationDate": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	items := make([]model.Reservation, 0)
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}
