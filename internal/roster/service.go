package roster

import (
	"context"
	"fmt"
	"time"
)

// ResolvePolicy decides what a name-only check-in does when no student in
// scope has that name. The original deployments disagreed on this, so the
// choice is explicit configuration rather than a silent default.
type ResolvePolicy int

const (
	// ResolveAutoRegister creates a student on the spot.
	ResolveAutoRegister ResolvePolicy = iota
	// ResolveRequireRegistered rejects the check-in with ErrNotFound,
	// expecting the admin to have registered the student beforehand.
	ResolveRequireRegistered
)

// Service implements check-in resolution, attendance toggling, and student
// administration over a Repository.
type Service struct {
	repo   *Repository
	policy ResolvePolicy
	now    func() time.Time
}

// NewService creates a service with the given name-only resolution policy.
func NewService(repo *Repository, policy ResolvePolicy) *Service {
	return &Service{repo: repo, policy: policy, now: time.Now}
}

// CheckInRequest identifies a student by name and/or phone for one date.
type CheckInRequest struct {
	Name  string
	Phone string
	Date  string
}

// CheckInResult reports the resolved student and whether the date was
// already recorded.
type CheckInResult struct {
	StudentName      string
	AlreadyCheckedIn bool
}

// CheckIn resolves the student and records attendance for the date. A
// repeated check-in for the same date succeeds and reports
// AlreadyCheckedIn = true; no second row is ever created.
func (s *Service) CheckIn(ctx context.Context, scope Scope, req CheckInRequest) (CheckInResult, error) {
	return s.checkIn(ctx, scope, req, false)
}

// CheckInStrict is the rejecting variant: a repeated check-in for the same
// date fails with ErrAlreadyCheckedIn instead of succeeding idempotently.
func (s *Service) CheckInStrict(ctx context.Context, scope Scope, req CheckInRequest) (CheckInResult, error) {
	return s.checkIn(ctx, scope, req, true)
}

func (s *Service) checkIn(ctx context.Context, scope Scope, req CheckInRequest, strict bool) (CheckInResult, error) {
	if err := validDate(req.Date); err != nil {
		return CheckInResult{}, err
	}
	student, err := s.resolveStudent(ctx, scope, req.Name, req.Phone)
	if err != nil {
		return CheckInResult{}, err
	}

	created, err := s.repo.InsertAttendance(ctx, student.ID, req.Date, s.now().UTC())
	if err != nil {
		return CheckInResult{}, fmt.Errorf("record attendance: %w", err)
	}
	if !created && strict {
		return CheckInResult{}, ErrAlreadyCheckedIn
	}
	name := ""
	if student.Name != nil {
		name = *student.Name
	}
	return CheckInResult{StudentName: name, AlreadyCheckedIn: !created}, nil
}

// resolveStudent maps a name and/or phone to exactly one student in scope.
// Phone wins when present: it is the unique key, and a missing name on the
// record is backfilled from the request. Name-only lookups must match exactly
// one student; two or more matches need a phone to disambiguate.
func (s *Service) resolveStudent(ctx context.Context, scope Scope, name, phone string) (Student, error) {
	if name == "" && phone == "" {
		return Student{}, fmt.Errorf("%w: name or phone required", ErrInvalidArgument)
	}

	if phone != "" {
		student, err := s.repo.StudentByPhone(ctx, scope, phone)
		if err != nil {
			return Student{}, fmt.Errorf("lookup by phone: %w", err)
		}
		if student != nil {
			if name != "" && student.Name == nil {
				if err := s.repo.SetStudentName(ctx, student.ID, name); err != nil {
					return Student{}, fmt.Errorf("backfill name: %w", err)
				}
				student.Name = &name
			}
			return *student, nil
		}
		created, err := s.repo.CreateStudent(ctx, scope, Student{Name: optional(name), Phone: &phone})
		if err == ErrConflict {
			// Lost a create race; the winner's row is the student.
			winner, lerr := s.repo.StudentByPhone(ctx, scope, phone)
			if lerr == nil && winner != nil {
				return *winner, nil
			}
			return Student{}, ErrConflict
		}
		if err != nil {
			return Student{}, fmt.Errorf("register student: %w", err)
		}
		return created, nil
	}

	matches, err := s.repo.StudentsByName(ctx, scope, name)
	if err != nil {
		return Student{}, fmt.Errorf("lookup by name: %w", err)
	}
	switch len(matches) {
	case 0:
		if s.policy == ResolveRequireRegistered {
			return Student{}, ErrNotFound
		}
		created, err := s.repo.CreateStudent(ctx, scope, Student{Name: &name})
		if err != nil {
			return Student{}, fmt.Errorf("register student: %w", err)
		}
		return created, nil
	case 1:
		return matches[0], nil
	default:
		return Student{}, ErrAmbiguousIdentity
	}
}

// SetAttendance is the admin toggle: present creates the record if absent,
// absent deletes it if present. Both directions are idempotent. The student
// must be within the caller's scope.
func (s *Service) SetAttendance(ctx context.Context, scope Scope, studentID, date string, present bool) error {
	if studentID == "" {
		return fmt.Errorf("%w: student id required", ErrInvalidArgument)
	}
	if err := validDate(date); err != nil {
		return err
	}
	student, err := s.repo.StudentByID(ctx, scope, studentID)
	if err != nil {
		return fmt.Errorf("lookup student: %w", err)
	}
	if student == nil {
		return ErrNotFound
	}
	if present {
		_, err = s.repo.InsertAttendance(ctx, studentID, date, s.now().UTC())
	} else {
		_, err = s.repo.DeleteAttendance(ctx, studentID, date)
	}
	if err != nil {
		return fmt.Errorf("toggle attendance: %w", err)
	}
	return nil
}

// Merge consolidates two duplicate students: source's history moves to
// target (target's own record wins on any shared date) and source is
// deleted. Runs as one transaction; a failure leaves everything untouched.
func (s *Service) Merge(ctx context.Context, scope Scope, sourceID, targetID string) error {
	if sourceID == "" || targetID == "" {
		return fmt.Errorf("%w: source and target required", ErrInvalidArgument)
	}
	if sourceID == targetID {
		return fmt.Errorf("%w: cannot merge a student into itself", ErrInvalidArgument)
	}
	return s.repo.MergeStudents(ctx, scope, sourceID, targetID)
}

// AddStudent registers a student from the admin screen. Phone is required
// there; a duplicate phone in scope is ErrConflict.
func (s *Service) AddStudent(ctx context.Context, scope Scope, name, phone, school, year string) (Student, error) {
	if phone == "" {
		return Student{}, fmt.Errorf("%w: phone required", ErrInvalidArgument)
	}
	return s.repo.CreateStudent(ctx, scope, Student{
		Name:   optional(name),
		Phone:  &phone,
		School: optional(school),
		Year:   optional(year),
	})
}

// UpdateStudent replaces a student's editable fields.
func (s *Service) UpdateStudent(ctx context.Context, scope Scope, id string, name, phone, school, year string) (Student, error) {
	if phone != "" {
		existing, err := s.repo.StudentByPhone(ctx, scope, phone)
		if err != nil {
			return Student{}, fmt.Errorf("check phone: %w", err)
		}
		if existing != nil && existing.ID != id {
			return Student{}, ErrConflict
		}
	}
	updated, err := s.repo.UpdateStudent(ctx, scope, id, optional(name), optional(phone), optional(school), optional(year))
	if err != nil {
		return Student{}, err
	}
	if updated == nil {
		return Student{}, ErrNotFound
	}
	return *updated, nil
}

// DeleteStudent removes a student and its attendance history.
func (s *Service) DeleteStudent(ctx context.Context, scope Scope, id string) error {
	deleted, err := s.repo.DeleteStudent(ctx, scope, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// ListStudents returns the scope's roster with attendance counts.
func (s *Service) ListStudents(ctx context.Context, scope Scope) ([]StudentListing, error) {
	return s.repo.ListStudents(ctx, scope)
}

// DailySheet returns presence per student for one date.
func (s *Service) DailySheet(ctx context.Context, scope Scope, date string) ([]SheetRow, error) {
	if err := validDate(date); err != nil {
		return nil, err
	}
	return s.repo.DailySheet(ctx, scope, date)
}

// ExportAll returns the data feeding the CSV export.
func (s *Service) ExportAll(ctx context.Context, scope Scope) ([]ExportRow, error) {
	return s.repo.ExportRows(ctx, scope)
}

// Stats returns roster totals.
func (s *Service) Stats(ctx context.Context, scope Scope) (int, error) {
	return s.repo.CountStudents(ctx, scope)
}

func validDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidArgument)
	}
	return nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
