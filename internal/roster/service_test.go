package roster

import (
	"context"
	"errors"
	"testing"
)

func newTestService(t *testing.T, policy ResolvePolicy) (*Service, *Repository, Scope) {
	t.Helper()
	repo, db := newTestRepo(t)
	scope := seedProject(t, repo, db, "owner-1")
	return NewService(repo, policy), repo, scope
}

func TestCheckInCreatesStudentAndIsIdempotent(t *testing.T) {
	svc, repo, scope := newTestService(t, ResolveAutoRegister)
	ctx := context.Background()

	req := CheckInRequest{Name: "Kim", Phone: "010-1111-1111", Date: "2024-01-01"}
	res, err := svc.CheckIn(ctx, scope, req)
	if err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	if res.AlreadyCheckedIn {
		t.Fatal("first check-in reported already checked in")
	}
	if res.StudentName != "Kim" {
		t.Fatalf("student name = %q, want Kim", res.StudentName)
	}

	res, err = svc.CheckIn(ctx, scope, req)
	if err != nil {
		t.Fatalf("second check-in: %v", err)
	}
	if !res.AlreadyCheckedIn {
		t.Fatal("second check-in did not report already checked in")
	}

	student, err := repo.StudentByPhone(ctx, scope, "010-1111-1111")
	if err != nil || student == nil {
		t.Fatalf("student lookup: %v %v", student, err)
	}
	dates, err := repo.AttendanceDates(ctx, student.ID)
	if err != nil {
		t.Fatalf("attendance dates: %v", err)
	}
	if len(dates) != 1 || dates[0] != "2024-01-01" {
		t.Fatalf("dates = %v, want [2024-01-01]", dates)
	}
}

func TestCheckInStrictRejectsDuplicate(t *testing.T) {
	svc, _, scope := newTestService(t, ResolveAutoRegister)
	ctx := context.Background()

	req := CheckInRequest{Phone: "010-2222-2222", Date: "2024-01-01"}
	if _, err := svc.CheckInStrict(ctx, scope, req); err != nil {
		t.Fatalf("first strict check-in: %v", err)
	}
	if _, err := svc.CheckInStrict(ctx, scope, req); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("second strict check-in err = %v, want ErrAlreadyCheckedIn", err)
	}
}

func TestNameOnlyResolution(t *testing.T) {
	svc, repo, scope := newTestService(t, ResolveAutoRegister)
	ctx := context.Background()

	// Zero matches with auto-register creates the student.
	res, err := svc.CheckIn(ctx, scope, CheckInRequest{Name: "Lee", Date: "2024-02-01"})
	if err != nil {
		t.Fatalf("auto-register check-in: %v", err)
	}
	if res.StudentName != "Lee" {
		t.Fatalf("student name = %q, want Lee", res.StudentName)
	}

	// Exactly one match resolves to it, no second student appears.
	if _, err := svc.CheckIn(ctx, scope, CheckInRequest{Name: "Lee", Date: "2024-02-02"}); err != nil {
		t.Fatalf("single-match check-in: %v", err)
	}
	matches, err := repo.StudentsByName(ctx, scope, "Lee")
	if err != nil {
		t.Fatalf("students by name: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("students named Lee = %d, want 1", len(matches))
	}

	// A second student with the same name makes name-only ambiguous.
	if _, err := repo.CreateStudent(ctx, scope, Student{Name: strptr("Lee"), Phone: strptr("010-3333-3333")}); err != nil {
		t.Fatalf("create duplicate name: %v", err)
	}
	if _, err := svc.CheckIn(ctx, scope, CheckInRequest{Name: "Lee", Date: "2024-02-03"}); !errors.Is(err, ErrAmbiguousIdentity) {
		t.Fatalf("ambiguous check-in err = %v, want ErrAmbiguousIdentity", err)
	}
}

func TestNameOnlyRequireRegistered(t *testing.T) {
	svc, _, scope := newTestService(t, ResolveRequireRegistered)
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, scope, CheckInRequest{Name: "Ghost", Date: "2024-02-01"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unregistered check-in err = %v, want ErrNotFound", err)
	}
}

func TestCheckInBackfillsMissingName(t *testing.T) {
	svc, repo, scope := newTestService(t, ResolveAutoRegister)
	ctx := context.Background()

	if _, err := repo.CreateStudent(ctx, scope, Student{Phone: strptr("010-4444-4444")}); err != nil {
		t.Fatalf("create nameless student: %v", err)
	}
	res, err := svc.CheckIn(ctx, scope, CheckInRequest{Name: "Park", Phone: "010-4444-4444", Date: "2024-03-01"})
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if res.StudentName != "Park" {
		t.Fatalf("student name = %q, want Park", res.StudentName)
	}
	student, err := repo.StudentByPhone(ctx, scope, "010-4444-4444")
	if err != nil || student == nil || student.Name == nil || *student.Name != "Park" {
		t.Fatalf("name not backfilled: %+v %v", student, err)
	}
}

func TestCheckInValidation(t *testing.T) {
	svc, _, scope := newTestService(t, ResolveAutoRegister)
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, scope, CheckInRequest{Date: "2024-01-01"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty identity err = %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.CheckIn(ctx, scope, CheckInRequest{Name: "Kim", Date: "Jan 1"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("bad date err = %v, want ErrInvalidArgument", err)
	}
}

func TestSetAttendanceToggle(t *testing.T) {
	svc, repo, scope := newTestService(t, ResolveAutoRegister)
	ctx := context.Background()

	student, err := repo.CreateStudent(ctx, scope, Student{Name: strptr("Choi"), Phone: strptr("010-5555-5555")})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.SetAttendance(ctx, scope, student.ID, "2024-04-01", true); err != nil {
			t.Fatalf("toggle on #%d: %v", i+1, err)
		}
	}
	dates, _ := repo.AttendanceDates(ctx, student.ID)
	if len(dates) != 1 {
		t.Fatalf("dates after double toggle on = %v, want one entry", dates)
	}

	for i := 0; i < 2; i++ {
		if err := svc.SetAttendance(ctx, scope, student.ID, "2024-04-01", false); err != nil {
			t.Fatalf("toggle off #%d: %v", i+1, err)
		}
	}
	dates, _ = repo.AttendanceDates(ctx, student.ID)
	if len(dates) != 0 {
		t.Fatalf("dates after toggle off = %v, want none", dates)
	}
}

func TestSetAttendanceOutsideScope(t *testing.T) {
	svc, repo, scope := newTestService(t, ResolveAutoRegister)
	ctx := context.Background()

	// A global-roster student must not be reachable through a project scope.
	global, err := repo.CreateStudent(ctx, Global, Student{Name: strptr("Nam"), Phone: strptr("010-6666-6666")})
	if err != nil {
		t.Fatalf("create global student: %v", err)
	}
	if err := svc.SetAttendance(ctx, scope, global.ID, "2024-04-01", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-scope toggle err = %v, want ErrNotFound", err)
	}
}

func TestMergeUnionTargetWins(t *testing.T) {
	svc, repo, scope := newTestService(t, ResolveAutoRegister)
	ctx := context.Background()

	source, err := repo.CreateStudent(ctx, scope, Student{Name: strptr("Jung"), Phone: strptr("010-7777-0001")})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	target, err := repo.CreateStudent(ctx, scope, Student{Name: strptr("Jung"), Phone: strptr("010-7777-0002")})
	if err != nil {
		t.Fatalf("create target: %v", err)
	}
	for _, d := range []string{"2024-01-01", "2024-01-02"} {
		if _, err := repo.InsertAttendance(ctx, source.ID, d, testTime()); err != nil {
			t.Fatalf("seed source %s: %v", d, err)
		}
	}
	for _, d := range []string{"2024-01-02", "2024-01-03"} {
		if _, err := repo.InsertAttendance(ctx, target.ID, d, testTime()); err != nil {
			t.Fatalf("seed target %s: %v", d, err)
		}
	}

	if err := svc.Merge(ctx, scope, source.ID, target.ID); err != nil {
		t.Fatalf("merge: %v", err)
	}

	dates, err := repo.AttendanceDates(ctx, target.ID)
	if err != nil {
		t.Fatalf("target dates: %v", err)
	}
	want := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	if len(dates) != len(want) {
		t.Fatalf("target dates = %v, want %v", dates, want)
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("target dates = %v, want %v", dates, want)
		}
	}

	gone, err := repo.StudentByID(ctx, scope, source.ID)
	if err != nil {
		t.Fatalf("source lookup: %v", err)
	}
	if gone != nil {
		t.Fatal("source student still exists after merge")
	}
}

func TestMergeValidation(t *testing.T) {
	svc, repo, scope := newTestService(t, ResolveAutoRegister)
	ctx := context.Background()

	student, err := repo.CreateStudent(ctx, scope, Student{Name: strptr("Han")})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	if err := svc.Merge(ctx, scope, student.ID, student.ID); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("self-merge err = %v, want ErrInvalidArgument", err)
	}
	if err := svc.Merge(ctx, scope, student.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing target err = %v, want ErrNotFound", err)
	}
	if err := svc.Merge(ctx, scope, "", student.ID); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty source err = %v, want ErrInvalidArgument", err)
	}
}

func TestMergeRollsBackOnFailure(t *testing.T) {
	svc, repo, scope := newTestService(t, ResolveAutoRegister)
	db := repo.db
	ctx := context.Background()

	source, err := repo.CreateStudent(ctx, scope, Student{Name: strptr("Seo"), Phone: strptr("010-8888-0001")})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	target, err := repo.CreateStudent(ctx, scope, Student{Name: strptr("Seo"), Phone: strptr("010-8888-0002")})
	if err != nil {
		t.Fatalf("create target: %v", err)
	}
	for _, d := range []string{"2024-05-01", "2024-05-02"} {
		if _, err := repo.InsertAttendance(ctx, source.ID, d, testTime()); err != nil {
			t.Fatalf("seed source %s: %v", d, err)
		}
	}

	// Force the final delete inside the merge transaction to fail so the
	// already-executed reassignment must be rolled back.
	if _, err := db.Exec(`
		CREATE TRIGGER block_source_delete BEFORE DELETE ON students
		WHEN OLD.id = '` + source.ID + `'
		BEGIN SELECT RAISE(ABORT, 'simulated failure'); END
	`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if err := svc.Merge(ctx, scope, source.ID, target.ID); err == nil {
		t.Fatal("merge succeeded despite simulated failure")
	}

	still, err := repo.StudentByID(ctx, scope, source.ID)
	if err != nil || still == nil {
		t.Fatalf("source missing after failed merge: %v %v", still, err)
	}
	sourceDates, _ := repo.AttendanceDates(ctx, source.ID)
	if len(sourceDates) != 2 {
		t.Fatalf("source dates after rollback = %v, want 2 entries", sourceDates)
	}
	targetDates, _ := repo.AttendanceDates(ctx, target.ID)
	if len(targetDates) != 0 {
		t.Fatalf("target dates after rollback = %v, want none", targetDates)
	}
}

func TestAddAndUpdateStudentConflicts(t *testing.T) {
	svc, _, scope := newTestService(t, ResolveAutoRegister)
	ctx := context.Background()

	if _, err := svc.AddStudent(ctx, scope, "Yoon", "", "", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("add without phone err = %v, want ErrInvalidArgument", err)
	}
	first, err := svc.AddStudent(ctx, scope, "Yoon", "010-9999-0001", "Hana High", "2")
	if err != nil {
		t.Fatalf("add student: %v", err)
	}
	if _, err := svc.AddStudent(ctx, scope, "Other", "010-9999-0001", "", ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate phone err = %v, want ErrConflict", err)
	}

	second, err := svc.AddStudent(ctx, scope, "Bae", "010-9999-0002", "", "")
	if err != nil {
		t.Fatalf("add second student: %v", err)
	}
	if _, err := svc.UpdateStudent(ctx, scope, second.ID, "Bae", "010-9999-0001", "", ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("update onto taken phone err = %v, want ErrConflict", err)
	}

	updated, err := svc.UpdateStudent(ctx, scope, first.ID, "Yoon Jae", "010-9999-0001", "Hana High", "3")
	if err != nil {
		t.Fatalf("update student: %v", err)
	}
	if updated.Name == nil || *updated.Name != "Yoon Jae" {
		t.Fatalf("updated name = %v, want Yoon Jae", updated.Name)
	}
	if _, err := svc.UpdateStudent(ctx, scope, "missing", "X", "", "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing err = %v, want ErrNotFound", err)
	}
}

func TestDeleteStudentRemovesHistory(t *testing.T) {
	svc, repo, scope := newTestService(t, ResolveAutoRegister)
	ctx := context.Background()

	student, err := svc.AddStudent(ctx, scope, "Min", "010-1010-0001", "", "")
	if err != nil {
		t.Fatalf("add student: %v", err)
	}
	if _, err := repo.InsertAttendance(ctx, student.ID, "2024-06-01", testTime()); err != nil {
		t.Fatalf("seed attendance: %v", err)
	}

	if err := svc.DeleteStudent(ctx, scope, student.ID); err != nil {
		t.Fatalf("delete student: %v", err)
	}
	if err := svc.DeleteStudent(ctx, scope, student.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}

	var n int
	if err := repo.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendances WHERE student_id = $1`, student.ID).Scan(&n); err != nil {
		t.Fatalf("count attendances: %v", err)
	}
	if n != 0 {
		t.Fatalf("attendance rows after delete = %d, want 0", n)
	}
}

func TestSamePhoneAcrossScopes(t *testing.T) {
	svc, repo, scope := newTestService(t, ResolveAutoRegister)
	ctx := context.Background()

	if _, err := svc.AddStudent(ctx, scope, "A", "010-2020-0001", "", ""); err != nil {
		t.Fatalf("add in project: %v", err)
	}
	// The same phone is a different identity on the global roster.
	if _, err := repo.CreateStudent(ctx, Global, Student{Phone: strptr("010-2020-0001")}); err != nil {
		t.Fatalf("add globally: %v", err)
	}
	if _, err := repo.CreateStudent(ctx, Global, Student{Phone: strptr("010-2020-0001")}); !errors.Is(err, ErrConflict) {
		t.Fatalf("global duplicate err = %v, want ErrConflict", err)
	}
}
