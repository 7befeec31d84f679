package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/storage"
)

var (
	_ storage.UserStore    = (*Store)(nil)
	_ storage.OrderStore   = (*Store)(nil)
	_ storage.BookingStore = (*Store)(nil)
)

const adminClaimID = "admin"

// Store persists users, orders and bookings as MongoDB documents.
type Store struct {
	client    *mongo.Client
	users     *mongo.Collection
	bootstrap *mongo.Collection
	orders    *mongo.Collection
	bookings  *mongo.Collection
	timeout   time.Duration
	now       func() time.Time

	// claimAdmin inserts the bootstrap claim for user.
	claimAdmin func(ctx context.Context, user models.User) error
}

// NewStore connects to uri, pings the server and ensures indexes on database.
func NewStore(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri).SetTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, storage.Unavailable("ping mongo", err)
	}

	db := client.Database(database)
	s := &Store{
		client:    client,
		users:     db.Collection("users"),
		bootstrap: db.Collection("bootstrap"),
		orders:    db.Collection("orders"),
		bookings:  db.Collection("bookings"),
		timeout:   timeout,
		now:       time.Now,
	}
	s.claimAdmin = s.insertClaim
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email_verification_token", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "password_reset_token", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return s.classify("create user indexes", err)
	}
	if _, err := s.orders.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}}); err != nil {
		return s.classify("create order indexes", err)
	}
	if _, err := s.bookings.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}}); err != nil {
		return s.classify("create booking indexes", err)
	}
	return nil
}

func (s *Store) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return storage.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Store) findOneUser(ctx context.Context, op string, filter bson.M) (models.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	var u models.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, s.classify(op, err)
	}
	return u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOneUser(ctx, "find user by email", bson.M{"email": email})
}

func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	return s.findOneUser(ctx, "find user by id", bson.M{"_id": id})
}

// CreateUser inserts the user, then claims the admin bootstrap document. Only
// one insert of the claim document can succeed, so at most one user is
// promoted. If anything after the insert fails the user is removed again, so
// a failed registration never leaves an account behind.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	user.Role = models.RoleUser
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, s.classify("insert user", err)
	}

	err := s.claimAdmin(ctx, user)
	switch {
	case err == nil:
		if _, err := s.users.UpdateByID(ctx, user.ID, bson.M{"$set": bson.M{"role": models.RoleAdmin}}); err != nil {
			s.rollbackUser(ctx, user.ID, true)
			return models.User{}, s.classify("promote bootstrap admin", err)
		}
		user.Role = models.RoleAdmin
	case mongo.IsDuplicateKeyError(err):
	default:
		s.rollbackUser(ctx, user.ID, false)
		return models.User{}, s.classify("claim admin bootstrap", err)
	}
	return user, nil
}

func (s *Store) insertClaim(ctx context.Context, user models.User) error {
	_, err := s.bootstrap.InsertOne(ctx, bson.M{"_id": adminClaimID, "user_id": user.ID, "claimed_at": user.CreatedAt})
	return err
}

// rollbackUser undoes a partial CreateUser. It runs on a fresh deadline since
// the request context may be the reason the create failed.
func (s *Store) rollbackUser(ctx context.Context, id string, releaseClaim bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if releaseClaim {
		_, _ = s.bootstrap.DeleteOne(ctx, bson.M{"_id": adminClaimID, "user_id": id})
	}
	_, _ = s.users.DeleteOne(ctx, bson.M{"_id": id})
}

// consume atomically clears a single-use token that matches and has not expired.
func (s *Store) consume(ctx context.Context, op, tokenField, expiryField, token string, set bson.M) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrInvalidToken
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	set[tokenField] = nil
	set[expiryField] = nil
	filter := bson.M{tokenField: token, expiryField: bson.M{"$gt": s.now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.users.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storage.ErrInvalidToken
		}
		return models.User{}, s.classify(op, err)
	}
	return u, nil
}

func (s *Store) VerifyEmail(ctx context.Context, token string) (models.User, error) {
	return s.consume(ctx, "verify email", "email_verification_token", "email_verification_expires_at", token,
		bson.M{"email_verified": true})
}

func (s *Store) ResetPassword(ctx context.Context, token, passwordHash string) (models.User, error) {
	return s.consume(ctx, "reset password", "password_reset_token", "password_reset_expires_at", token,
		bson.M{"password_hash": passwordHash})
}

func (s *Store) GeneratePasswordResetToken(ctx context.Context, email string) (string, error) {
	token, err := storage.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	expires := s.now().Add(storage.PasswordResetTTL).UTC()
	res, err := s.users.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{
		"password_reset_token":      token,
		"password_reset_expires_at": expires,
	}})
	if err != nil {
		return "", s.classify("store reset token", err)
	}
	if res.MatchedCount == 0 {
		return "", storage.ErrNotFound
	}
	return token, nil
}

func (s *Store) PromoteToAdmin(ctx context.Context, id string) (models.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": models.RoleAdmin}}, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, s.classify("promote user", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, s.classify("list users", err)
	}
	defer cur.Close(ctx)
	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, s.classify("decode users", err)
	}
	return users, nil
}

// DeleteAllUsers wipes users and releases the admin bootstrap claim. A user
// registered while the wipe ran may have seen the old claim and stayed a plain
// user, so the oldest survivor, if any, is promoted afterwards.
func (s *Store) DeleteAllUsers(ctx context.Context) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	if _, err := s.users.DeleteMany(ctx, bson.M{}); err != nil {
		return s.classify("delete users", err)
	}
	if _, err := s.bootstrap.DeleteMany(ctx, bson.M{}); err != nil {
		return s.classify("clear admin bootstrap", err)
	}
	return s.repairBootstrap(ctx)
}

func (s *Store) repairBootstrap(ctx context.Context) error {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	var oldest models.User
	if err := s.users.FindOne(ctx, bson.M{}, opts).Decode(&oldest); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return s.classify("find bootstrap candidate", err)
	}
	if err := s.claimAdmin(ctx, oldest); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return s.classify("claim admin bootstrap", err)
	}
	if _, err := s.users.UpdateByID(ctx, oldest.ID, bson.M{"$set": bson.M{"role": models.RoleAdmin}}); err != nil {
		return s.classify("promote bootstrap admin", err)
	}
	return nil
}
