// Package mongorepo stores events and users in MongoDB. Seat accounting relies
// on single-document conditional updates, so no transactions are needed.
package mongorepo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store implements the event and user stores on one database.
type Store struct {
	db     *mongo.Database
	users  *mongo.Collection
	events *mongo.Collection
	now    func() time.Time
}

// New returns a Store for db. Call EnsureIndexes once at startup.
func New(db *mongo.Database) *Store {
	return &Store{
		db:     db,
		users:  db.Collection("users"),
		events: db.Collection("events"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique email index and the listing indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_email_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	_, err = s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "date", Value: 1}},
			Options: options.Index().SetName("events_date"),
		},
		{
			Keys:    bson.D{{Key: "attendees", Value: 1}},
			Options: options.Index().SetName("events_attendees"),
		},
	})
	if err != nil {
		return fmt.Errorf("events indexes: %w", err)
	}
	return nil
}

// ─── Events ──────────────────────────────────────────────────────────────────

func (s *Store) Create(ctx context.Context, e *model.Event) error {
	doc := e.Clone()
	if doc.Attendees == nil {
		doc.Attendees = []string{}
	}
	if _, err := s.events.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	_, err := s.users.UpdateByID(ctx, e.OrganizerID,
		bson.M{"$addToSet": bson.M{"created_events": e.ID}})
	if err != nil {
		return fmt.Errorf("link organizer: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	if err := s.events.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

func (s *Store) Find(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.VisibleOnly {
		filter["is_approved"] = true
		filter["is_disabled"] = false
	}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cur, err := s.events.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer cur.Close(ctx)

	var result []model.Event
	for cur.Next(ctx) {
		var e model.Event
		if err := cur.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		result = append(result, e)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list events cursor: %w", err)
	}
	return result, nil
}

// Update replaces the editable fields. The capacity guard runs inside the
// filter so a concurrent registration cannot slip under a shrinking limit.
func (s *Store) Update(ctx context.Context, e *model.Event) (*model.Event, error) {
	filter := bson.M{
		"_id":   e.ID,
		"$expr": bson.M{"$lte": bson.A{bson.M{"$size": "$attendees"}, e.MaxAttendees}},
	}
	update := bson.M{"$set": bson.M{
		"title":         e.Title,
		"description":   e.Description,
		"location":      e.Location,
		"date":          e.Date,
		"category":      e.Category,
		"max_attendees": e.MaxAttendees,
		"image_url":     e.ImageURL,
		"status":        e.Status,
		"updated_at":    s.now(),
	}}
	out, err := s.findAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := s.GetByID(ctx, e.ID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: max_attendees cannot be lower than the registered attendees",
			model.ErrValidation)
	}
	return out, err
}

func (s *Store) SetStatus(ctx context.Context, id string, status model.Status) error {
	res, err := s.events.UpdateByID(ctx, id, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) SetApproved(ctx context.Context, id string) (*model.Event, error) {
	return s.updateByID(ctx, id, bson.M{"$set": bson.M{"is_approved": true, "updated_at": s.now()}})
}

// ToggleDisabled flips the flag with an update pipeline so the read and the
// write happen in one step.
func (s *Store) ToggleDisabled(ctx context.Context, id string) (*model.Event, error) {
	return s.updateByID(ctx, id, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"is_disabled": bson.M{"$not": bson.A{"$is_disabled"}},
			"updated_at":  s.now(),
		}}},
	})
}

func (s *Store) AddAttendee(ctx context.Context, eventID, userID string) (*model.Event, error) {
	filter := bson.M{
		"_id":       eventID,
		"attendees": bson.M{"$ne": userID},
		"$expr":     bson.M{"$lt": bson.A{bson.M{"$size": "$attendees"}, "$max_attendees"}},
	}
	update := bson.M{
		"$push": bson.M{"attendees": userID},
		"$set":  bson.M{"updated_at": s.now()},
	}

	out, err := s.findAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		e, err := s.GetByID(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if e.HasAttendee(userID) {
			return nil, fmt.Errorf("%w: already registered for this event", model.ErrConflict)
		}
		return nil, model.ErrCapacity
	}
	if err != nil {
		return nil, err
	}

	_, err = s.users.UpdateByID(ctx, userID, bson.M{"$addToSet": bson.M{"attending_events": eventID}})
	if err != nil {
		return nil, fmt.Errorf("link attendee: %w", err)
	}
	return out, nil
}

func (s *Store) RemoveAttendee(ctx context.Context, eventID, userID string) (*model.Event, error) {
	filter := bson.M{"_id": eventID, "attendees": userID}
	update := bson.M{
		"$pull": bson.M{"attendees": userID},
		"$set":  bson.M{"updated_at": s.now()},
	}

	out, err := s.findAndUpdate(ctx, filter, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := s.GetByID(ctx, eventID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: not registered for this event", model.ErrConflict)
	}
	if err != nil {
		return nil, err
	}

	_, err = s.users.UpdateByID(ctx, userID, bson.M{"$pull": bson.M{"attending_events": eventID}})
	if err != nil {
		return nil, fmt.Errorf("unlink attendee: %w", err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	if err := s.events.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("delete event: %w", err)
	}

	_, err := s.users.UpdateMany(ctx,
		bson.M{"$or": bson.A{bson.M{"created_events": id}, bson.M{"attending_events": id}}},
		bson.M{"$pull": bson.M{"created_events": id, "attending_events": id}},
	)
	if err != nil {
		return nil, fmt.Errorf("unlink deleted event: %w", err)
	}
	return &e, nil
}

func (s *Store) updateByID(ctx context.Context, id string, update any) (*model.Event, error) {
	out, err := s.findAndUpdate(ctx, bson.M{"_id": id}, update)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrNotFound
	}
	return out, err
}

// findAndUpdate returns the updated document. mongo.ErrNoDocuments is passed
// through unwrapped so callers can diagnose a failed filter.
func (s *Store) findAndUpdate(ctx context.Context, filter, update any) (*model.Event, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var e model.Event
	err := s.events.FindOneAndUpdate(ctx, filter, update, opts).Decode(&e)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return &e, nil
}

// ─── Users ───────────────────────────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	doc := *u
	doc.Email = model.NormalizeEmail(u.Email)
	doc.CreatedEvents = nonNil(u.CreatedEvents)
	doc.AttendingEvents = nonNil(u.AttendingEvents)
	if _, err := s.users.InsertOne(ctx, &doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: email already registered", model.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"email": model.NormalizeEmail(email)})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	var u model.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var users []model.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (s *Store) SetRole(ctx context.Context, id string, role model.Role) error {
	res, err := s.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return slices.Clone(list)
}
