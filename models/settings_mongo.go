package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// settingsDocID is the _id of the single settings document.
const settingsDocID = "notifications"

type mongoSettingsRepo struct {
	col     *mongo.Collection
	timeout time.Duration
}

func NewMongoSettingsRepository(col *mongo.Collection) SettingsRepository {
	return &mongoSettingsRepo{col: col, timeout: 5 * time.Second}
}

// Get returns zero Settings when nothing has been saved yet.
func (r *mongoSettingsRepo) Get(ctx context.Context) (Settings, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var s Settings
	err := r.col.FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, storageErr("get settings", err)
	}
	return s, nil
}

func (r *mongoSettingsRepo) Save(ctx context.Context, s Settings) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	s.AdminEmail = strings.TrimSpace(s.AdminEmail)
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": settingsDocID},
		bson.M{"$set": s},
		options.Update().SetUpsert(true),
	)
	return storageErr("save settings", err)
}
