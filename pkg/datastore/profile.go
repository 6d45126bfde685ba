package datastore

import (
	"github.com/devsapp/serverless-automl-hub/pkg/models"
)

var profileColumns = []string{KProfileName, KProfileCompany, KProfileEmail, KProfileCreateTime, KProfileModifyTime}

// ProfileStore one row per user, keyed by the user id
type ProfileStore struct {
	table Datastore
}

func NewProfileStore(table Datastore) *ProfileStore {
	return &ProfileStore{table: table}
}

func (s *ProfileStore) Get(userId string) (*models.Profile, error) {
	row, err := s.table.Get(userId, profileColumns)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return &models.Profile{
		Id:        userId,
		Name:      rowString(row[KProfileName]),
		Company:   rowString(row[KProfileCompany]),
		Email:     rowString(row[KProfileEmail]),
		CreatedAt: rowString(row[KProfileCreateTime]),
		UpdatedAt: rowString(row[KProfileModifyTime]),
	}, nil
}

// Upsert creates the profile on first write and merges the given fields afterwards.
func (s *ProfileStore) Upsert(userId string, req *models.UpdateProfileRequest) (*models.Profile, error) {
	profile, err := s.Get(userId)
	switch {
	case err == ErrNotFound:
		profile = &models.Profile{Id: userId, CreatedAt: now()}
	case err != nil:
		return nil, err
	}
	if req.Name != nil {
		profile.Name = *req.Name
	}
	if req.Company != nil {
		profile.Company = *req.Company
	}
	if req.Email != nil {
		profile.Email = *req.Email
	}
	profile.UpdatedAt = now()
	if err := s.table.Put(userId, map[string]interface{}{
		KProfileName:       profile.Name,
		KProfileCompany:    profile.Company,
		KProfileEmail:      profile.Email,
		KProfileCreateTime: profile.CreatedAt,
		KProfileModifyTime: profile.UpdatedAt,
	}); err != nil {
		return nil, err
	}
	return profile, nil
}
