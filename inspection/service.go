// Package inspection implements the create-inspection operation on top of the
// sequence generator and the cached directory lookups.
package inspection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inspeksimobil/inspector-core/directory"
	"github.com/inspeksimobil/inspector-core/logger"
	"github.com/inspeksimobil/inspector-core/sequence"
	"github.com/inspeksimobil/inspector-core/store"
)

var (
	// ErrInspectorNotFound is returned when the inspector id resolves to no
	// profile.
	ErrInspectorNotFound = errors.New("inspection: inspector not found")

	// ErrBranchNotFound is returned when neither the inspector's profile nor
	// the request yields a known branch.
	ErrBranchNotFound = errors.New("inspection: branch not found")
)

// CreateInput carries the fields the consistency core needs to create an
// inspection. Validation of the full report payload happens upstream.
type CreateInput struct {
	InspectorID        string
	BranchID           string
	VehiclePlateNumber string
	OverallRating      string
	InspectionDate     time.Time
}

// Service creates inspection records with collision-free pretty ids.
type Service struct {
	sequence  *sequence.Generator
	directory *directory.Directory
	store     store.InspectionStore
	log       logger.Logger
}

// New creates a Service.
func New(seq *sequence.Generator, dir *directory.Directory, st store.InspectionStore, log logger.Logger) *Service {
	return &Service{sequence: seq, directory: dir, store: st, log: log}
}

// Create resolves the inspector and branch, issues the next pretty id for the
// branch and inspection date, and persists the record.
func (s *Service) Create(ctx context.Context, in CreateInput) (*store.Inspection, error) {
	inspector, err := s.directory.UserByID(ctx, in.InspectorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrInspectorNotFound, in.InspectorID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve inspector: %w", err)
	}

	branchID := inspector.BranchID
	if branchID == "" {
		branchID = in.BranchID
	}
	if branchID == "" {
		return nil, ErrBranchNotFound
	}

	branch, err := s.directory.BranchByID(ctx, branchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, branchID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve branch: %w", err)
	}

	prettyID, err := s.sequence.IssueNext(ctx, branch.Code, in.InspectionDate)
	if err != nil {
		return nil, fmt.Errorf("issue inspection id: %w", err)
	}

	rec := &store.Inspection{
		ID:                 uuid.NewString(),
		PrettyID:           prettyID,
		InspectorID:        inspector.ID,
		BranchID:           branch.ID,
		VehiclePlateNumber: in.VehiclePlateNumber,
		OverallRating:      in.OverallRating,
		InspectionDate:     in.InspectionDate,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.store.InsertInspection(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist inspection: %w", err)
	}

	s.log.Info().
		Str("pretty_id", rec.PrettyID).
		Str("inspector_id", rec.InspectorID).
		Str("branch", branch.Code).
		Msg("inspection created")

	return rec, nil
}
