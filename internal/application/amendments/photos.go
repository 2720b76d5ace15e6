package amendments

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	domain "github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
	"github.com/JadsonMattos/vigia-pix/internal/domain/geofence"
)

// UploadPhotoCommand carries one photo of the works.
type UploadPhotoCommand struct {
	AmendmentID domain.ID
	Filename    string
	ContentType string
	Data        []byte
	Location    *domain.Coordinates
	Kind        string
	Description string
	ToleranceKM float64
}

type UploadPhotoResult struct {
	Photo         domain.Photo     `json:"photo"`
	Verdict       geofence.Verdict `json:"geofence"`
	GeofenceValid *bool            `json:"geofence_valid"`
}

// UploadPhoto stores the image, resolves where it was taken (provided
// coordinates first, EXIF second), checks it against the recipient's
// location and refreshes the amendment-level geofence flag.
func (s *Service) UploadPhoto(ctx context.Context, cmd UploadPhotoCommand) (UploadPhotoResult, error) {
	if s.Photos == nil {
		return UploadPhotoResult{}, fmt.Errorf("%w: photo storage not configured", domain.ErrEnrichmentUnavailable)
	}
	if len(cmd.Data) == 0 {
		return UploadPhotoResult{}, fmt.Errorf("%w: empty photo", domain.ErrInvalidInput)
	}
	stored, err := s.load(ctx, cmd.AmendmentID)
	if err != nil {
		return UploadPhotoResult{}, err
	}
	a := stored.Clone()
	now := s.now()

	verdict := s.Geofence.Check(
		geofence.Evidence{Provided: cmd.Location, Image: cmd.Data},
		s.Geofence.Expected(a),
		cmd.ToleranceKM,
	)
	check := verdict.Check()

	photoID := uuid.NewString()
	key := domain.PhotoKey(a.ID, photoID, cmd.Filename)
	url, err := s.Photos.Put(ctx, key, bytes.NewReader(cmd.Data), int64(len(cmd.Data)), cmd.ContentType)
	if err != nil {
		return UploadPhotoResult{}, fmt.Errorf("%w: storing photo: %w", domain.ErrPersistence, err)
	}

	photo := domain.Photo{
		ID:          photoID,
		URL:         url,
		Kind:        cmd.Kind,
		Description: cmd.Description,
		Location:    verdict.Observed,
		Provenance:  verdict.Provenance,
		Geofence:    &check,
		UploadedAt:  now,
	}
	a.Photos = append(a.Photos, photo)
	a.GeofenceValid = geofence.Aggregate(a.Photos)
	a.UpdatedAt = now

	if err := s.commit(ctx, stored, a); err != nil {
		s.discardPhoto(ctx, key)
		return UploadPhotoResult{}, err
	}
	if verdict.Outcome == geofence.OutcomeOutside {
		s.log().Warn("photo outside geofence",
			"amendment_id", a.ID, "photo_id", photoID,
			"distance_km", verdict.DistanceKM, "tolerance_km", verdict.ToleranceKM)
	}
	return UploadPhotoResult{Photo: photo, Verdict: verdict, GeofenceValid: a.GeofenceValid}, nil
}

// discardPhoto removes an object whose amendment update was not saved.
func (s *Service) discardPhoto(ctx context.Context, key string) {
	if err := s.Photos.Remove(context.WithoutCancel(ctx), key); err != nil {
		s.log().Error("orphaned photo object", "key", key, "error", err)
	}
}

// ValidateGeofence checks one location against the amendment's expected
// location without storing anything.
func (s *Service) ValidateGeofence(ctx context.Context, id domain.ID, e geofence.Evidence, toleranceKM float64) (geofence.Verdict, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return geofence.Verdict{}, err
	}
	return s.Geofence.Check(e, s.Geofence.Expected(a), toleranceKM), nil
}

// ValidateGeofenceBatch checks several photos at once. AllValid is strict:
// a photo without coordinates makes the batch invalid.
func (s *Service) ValidateGeofenceBatch(ctx context.Context, id domain.ID, evidence []geofence.Evidence, toleranceKM float64) (geofence.BatchResult, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return geofence.BatchResult{}, err
	}
	return s.Geofence.CheckBatch(evidence, s.Geofence.Expected(a), toleranceKM), nil
}
