package mongo

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/Astemirdum/lending-service/pkg/mongodb"
)

type BookRepository struct {
	coll *mongo.Collection
	log  *zap.Logger
}

func NewBookRepository(db *mongodb.DB, log *zap.Logger) *BookRepository {
	return &BookRepository{
		coll: db.Database.Collection(booksCollection),
		log:  log.Named("repo.books"),
	}
}

func (r *BookRepository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	book.ID = uuid.NewString()
	if _, err := r.coll.InsertOne(ctx, book); err != nil {
		return model.Book{}, mapErr(err, errs.ErrNotFound)
	}
	return book, nil
}

func (r *BookRepository) GetBook(ctx context.Context, id string) (model.Book, error) {
	var book model.Book
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&book); err != nil {
		return model.Book{}, mapErr(err, errs.ErrNotFound)
	}
	return book, nil
}

func (r *BookRepository) ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	q := bson.M{}
	for field, v := range map[string]string{
		"title":     filter.Title,
		"author":    filter.Author,
		"publisher": filter.Publisher,
		"genre":     filter.Genre,
		"isbn":      filter.ISBN,
	} {
		if v != "" {
			q[field] = v
		}
	}
	if filter.PubDateAt != nil {
		q["pubDate"] = *filter.PubDateAt
	}
	if filter.Reserved != nil {
		q["reserved"] = *filter.Reserved
	}
	if filter.Disabled != nil {
		q["disabled"] = *filter.Disabled
	}
	r.log.Debug("ListBooks", zap.Any("filter", q))

	cur, err := r.coll.Find(ctx, q, options.Find().SetSort(bson.M{"title": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	books := make([]model.Book, 0)
	if err := cur.All(ctx, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *BookRepository) UpdateBook(ctx context.Context, id string, upd model.BookUpdate) (model.Book, error) {
	if upd.Empty() {
		return r.GetBook(ctx, id)
	}
	set := bson.M{}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Author != nil {
		set["author"] = *upd.Author
	}
	if upd.Publisher != nil {
		set["publisher"] = *upd.Publisher
	}
	if upd.Genre != nil {
		set["genre"] = *upd.Genre
	}
	if upd.ISBN != nil {
		set["isbn"] = *upd.ISBN
	}
	if upd.PubDate != nil {
		set["pubDate"] = upd.PubDate.Ptr()
	}
	var book model.Book
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, after()).Decode(&book); err != nil {
		return model.Book{}, mapErr(err, errs.ErrNotFound)
	}
	return book, nil
}

func (r *BookRepository) SetReserved(ctx context.Context, id string, reserved bool) (model.Book, error) {
	filter := bson.M{"_id": id, "reserved": !reserved}
	if reserved {
		filter["disabled"] = false
	}
	var book model.Book
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"reserved": reserved}}, after()).Decode(&book)
	if err != nil {
		return model.Book{}, mapErr(err, errs.ErrConflict)
	}
	return book, nil
}

func (r *BookRepository) DisableBook(ctx context.Context, id string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "reserved": false}, bson.M{"$set": bson.M{"disabled": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetBook(ctx, id); err != nil {
			return err
		}
		return errs.ErrConflict
	}
	return nil
}
