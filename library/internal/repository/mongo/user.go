package mongo

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/Astemirdum/lending-service/pkg/mongodb"
)

type UserRepository struct {
	coll *mongo.Collection
	log  *zap.Logger
}

func NewUserRepository(db *mongodb.DB, log *zap.Logger) *UserRepository {
	return &UserRepository{
		coll: db.Database.Collection(usersCollection),
		log:  log.Named("repo.users"),
	}
}

func (r *UserRepository) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	user.ID = uuid.NewString()
	if user.Permissions == nil {
		user.Permissions = model.Permissions{}
	}
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return model.User{}, mapErr(err, errs.ErrNotFound)
	}
	return user, nil
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (model.User, error) {
	if upd.Empty() {
		return r.GetUser(ctx, id)
	}
	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.Password != nil {
		set["passwordHash"] = *upd.Password
	}
	if upd.Permissions != nil {
		set["permissions"] = upd.Permissions
	}
	var user model.User
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, after()).Decode(&user); err != nil {
		return model.User{}, mapErr(err, errs.ErrNotFound)
	}
	return user, nil
}

func (r *UserRepository) DisableUser(ctx context.Context, id string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"disabled": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (model.User, error) {
	var user model.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return model.User{}, mapErr(err, errs.ErrNotFound)
	}
	return user, nil
}
