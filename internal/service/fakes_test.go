package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/academic-records-api/internal/models"
)

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }

type fakeSemesterStore struct {
	items     map[string]*models.Semester
	refs      map[string][2]int
	setActive []string
	createErr error
}

func newFakeSemesterStore(semesters ...models.Semester) *fakeSemesterStore {
	store := &fakeSemesterStore{items: make(map[string]*models.Semester), refs: make(map[string][2]int)}
	for i := range semesters {
		sem := semesters[i]
		store.items[sem.ID] = &sem
	}
	return store
}

func (f *fakeSemesterStore) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error) {
	out := make([]models.Semester, 0, len(f.items))
	for _, sem := range f.items {
		if filter.IsActive != nil && sem.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, *sem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, len(out), nil
}

func (f *fakeSemesterStore) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	sem, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *sem
	return &cp, nil
}

func (f *fakeSemesterStore) FindActive(ctx context.Context) (*models.Semester, error) {
	for _, sem := range f.items {
		if sem.IsActive {
			cp := *sem
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSemesterStore) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for id, sem := range f.items {
		if sem.Name == name && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSemesterStore) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = fmt.Sprintf("sem-%d", len(f.items)+1)
	}
	if f.createErr != nil {
		return f.createErr
	}
	if semester.IsActive {
		for _, sem := range f.items {
			sem.IsActive = false
		}
	}
	cp := *semester
	f.items[semester.ID] = &cp
	return nil
}

func (f *fakeSemesterStore) Update(ctx context.Context, semester *models.Semester) error {
	if _, ok := f.items[semester.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *semester
	f.items[semester.ID] = &cp
	return nil
}

func (f *fakeSemesterStore) SetActive(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	for sid, sem := range f.items {
		sem.IsActive = sid == id
	}
	f.setActive = append(f.setActive, id)
	return nil
}

func (f *fakeSemesterStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

func (f *fakeSemesterStore) CountReferences(ctx context.Context, id string) (int, int, error) {
	refs := f.refs[id]
	return refs[0], refs[1], nil
}

type fakeStudentStore struct {
	mu        sync.Mutex
	items     map[string]*models.Student
	standings []models.StudentStanding
}

func newFakeStudentStore(students ...models.Student) *fakeStudentStore {
	store := &fakeStudentStore{items: make(map[string]*models.Student)}
	for i := range students {
		s := students[i]
		store.items[s.ID] = &s
	}
	return store
}

func (f *fakeStudentStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStudentStore) ListAll(ctx context.Context) ([]models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Student, 0, len(f.items))
	for _, s := range f.items {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStudentStore) UpdateStanding(ctx context.Context, standing models.StudentStanding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[standing.StudentID]
	if !ok {
		return sql.ErrNoRows
	}
	s.CumulativeGPA = standing.CumulativeGPA
	s.TotalCreditsEarned = standing.TotalCreditsEarned
	f.standings = append(f.standings, standing)
	return nil
}

type fakeTeacherStore struct {
	items map[string]*models.Teacher
}

func newFakeTeacherStore(ids ...string) *fakeTeacherStore {
	store := &fakeTeacherStore{items: make(map[string]*models.Teacher)}
	for _, id := range ids {
		store.items[id] = &models.Teacher{ID: id, FullName: "Teacher " + id, Active: true}
	}
	return store
}

func (f *fakeTeacherStore) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	t, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

type fakeCourseStore struct {
	items    map[string]*models.Course
	roster   map[string][]string
	refs     map[string][2]int
	loadErr  error
	rosterOn []bool
}

func newFakeCourseStore(courses ...models.Course) *fakeCourseStore {
	store := &fakeCourseStore{
		items:  make(map[string]*models.Course),
		roster: make(map[string][]string),
		refs:   make(map[string][2]int),
	}
	for i := range courses {
		c := courses[i]
		store.items[c.ID] = &c
	}
	return store
}

func (f *fakeCourseStore) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	out := make([]models.Course, 0, len(f.items))
	for _, c := range f.items {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, len(out), nil
}

func (f *fakeCourseStore) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	c, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCourseStore) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	for id, c := range f.items {
		if c.Code == code && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCourseStore) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = fmt.Sprintf("course-%d", len(f.items)+1)
	}
	cp := *course
	f.items[course.ID] = &cp
	return nil
}

func (f *fakeCourseStore) Update(ctx context.Context, course *models.Course) error {
	cp := *course
	f.items[course.ID] = &cp
	return nil
}

func (f *fakeCourseStore) UpdateStatus(ctx context.Context, id string, status models.CourseStatus) error {
	f.items[id].Status = status
	return nil
}

func (f *fakeCourseStore) Delete(ctx context.Context, id string) error {
	delete(f.items, id)
	delete(f.roster, id)
	return nil
}

func (f *fakeCourseStore) CountReferences(ctx context.Context, id string) (int, int, error) {
	refs := f.refs[id]
	return refs[0], refs[1], nil
}

func (f *fakeCourseStore) ListTeachers(ctx context.Context, courseID string) ([]models.CourseTeacher, error) {
	out := make([]models.CourseTeacher, 0, len(f.roster[courseID]))
	for _, id := range f.roster[courseID] {
		out = append(out, models.CourseTeacher{CourseID: courseID, TeacherID: id})
	}
	return out, nil
}

func (f *fakeCourseStore) AssignTeacher(ctx context.Context, courseID, teacherID string) error {
	for _, id := range f.roster[courseID] {
		if id == teacherID {
			return nil
		}
	}
	f.roster[courseID] = append(f.roster[courseID], teacherID)
	return nil
}

func (f *fakeCourseStore) UnassignTeacher(ctx context.Context, courseID, teacherID string) (bool, error) {
	removed := false
	kept := f.roster[courseID][:0]
	for _, id := range f.roster[courseID] {
		if id == teacherID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	f.roster[courseID] = kept
	c := f.items[courseID]
	if c.TeacherID != nil && *c.TeacherID == teacherID {
		c.TeacherID = nil
		removed = true
	}
	if c.GradeRecordingTeacherID != nil && *c.GradeRecordingTeacherID == teacherID {
		c.GradeRecordingTeacherID = nil
	}
	return removed, nil
}

func (f *fakeCourseStore) SetGradeRecorder(ctx context.Context, courseID string, teacherID *string) error {
	f.items[courseID].GradeRecordingTeacherID = teacherID
	return nil
}

func (f *fakeCourseStore) Authority(ctx context.Context, courseID string, withRoster bool) (*models.CourseAuthority, error) {
	f.rosterOn = append(f.rosterOn, withRoster)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	c, ok := f.items[courseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	authority := &models.CourseAuthority{
		CourseID:                courseID,
		TeacherID:               c.TeacherID,
		GradeRecordingTeacherID: c.GradeRecordingTeacherID,
		Roster:                  []string{},
	}
	if withRoster {
		authority.Roster = append(authority.Roster, f.roster[courseID]...)
	}
	return authority, nil
}

type fakeEnrollmentStore struct {
	mu    sync.Mutex
	items []*models.Enrollment
	// createErr and reactivateErr simulate constraint races.
	createErr     error
	reactivateErr error
}

func (f *fakeEnrollmentStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EnrollmentDetail
	for _, e := range f.items {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	return out, len(out), nil
}

func (f *fakeEnrollmentStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.items {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentStore) FindByTriple(ctx context.Context, studentID, courseID, semesterID string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.items {
		if e.StudentID == studentID && e.CourseID == courseID && e.SemesterID == semesterID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentStore) FindActiveByStudentCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.items {
		if e.StudentID == studentID && e.CourseID == courseID && e.Status == models.EnrollmentStatusEnrolled {
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if enrollment.ID == "" {
		enrollment.ID = fmt.Sprintf("enr-%d", len(f.items)+1)
	}
	enrollment.EnrollmentDate = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	cp := *enrollment
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeEnrollmentStore) Reactivate(ctx context.Context, id string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactivateErr != nil {
		return nil, f.reactivateErr
	}
	for _, e := range f.items {
		if e.ID == id && e.Status == models.EnrollmentStatusDropped {
			e.Status = models.EnrollmentStatusEnrolled
			e.DroppedAt = nil
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentStore) MarkDropped(ctx context.Context, id string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.items {
		if e.ID == id {
			now := time.Now().UTC()
			e.Status = models.EnrollmentStatusDropped
			e.DroppedAt = &now
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *fakeEnrollmentStore) add(id, studentID, courseID, semesterID string, status models.EnrollmentStatus) {
	f.items = append(f.items, &models.Enrollment{
		ID:         id,
		StudentID:  studentID,
		CourseID:   courseID,
		SemesterID: semesterID,
		Status:     status,
	})
}

type fakeGradeStore struct {
	mu     sync.Mutex
	items  map[models.GradeKey]*models.Grade
	upsErr error
}

func newFakeGradeStore() *fakeGradeStore {
	return &fakeGradeStore{items: make(map[models.GradeKey]*models.Grade)}
}

func (f *fakeGradeStore) Upsert(ctx context.Context, grade *models.Grade) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsErr != nil {
		return false, f.upsErr
	}
	key := models.GradeKey{StudentID: grade.StudentID, CourseID: grade.CourseID, SemesterID: grade.SemesterID}
	if existing, ok := f.items[key]; ok {
		grade.ID = existing.ID
		cp := *grade
		f.items[key] = &cp
		return false, nil
	}
	grade.ID = fmt.Sprintf("grade-%d", len(f.items)+1)
	cp := *grade
	f.items[key] = &cp
	return true, nil
}

func (f *fakeGradeStore) FindByKey(ctx context.Context, key models.GradeKey) (*models.Grade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.items[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGradeStore) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GradeDetail
	for _, g := range f.items {
		out = append(out, models.GradeDetail{Grade: *g})
	}
	return out, len(out), nil
}

type fakeStandingRefresher struct {
	calls []string
	err   error
}

func (f *fakeStandingRefresher) RefreshStanding(ctx context.Context, studentID string) (*models.StudentStanding, error) {
	f.calls = append(f.calls, studentID)
	if f.err != nil {
		return nil, f.err
	}
	return &models.StudentStanding{StudentID: studentID}, nil
}

type fakeAggregateStore struct {
	grades      []models.GradeFact
	enrollments []models.EnrollmentFact
	semesters   []models.Semester
	departments []models.Department
	courses     int
	active      int
	err         error
}

func (f *fakeAggregateStore) GradeFacts(ctx context.Context, scope models.StatsScope) ([]models.GradeFact, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.GradeFact
	for _, g := range f.grades {
		if scope.StudentID != "" && g.StudentID != scope.StudentID {
			continue
		}
		if scope.CourseID != "" && g.CourseID != scope.CourseID {
			continue
		}
		if scope.SemesterID != "" && g.SemesterID != scope.SemesterID {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeAggregateStore) EnrollmentFacts(ctx context.Context, scope models.StatsScope) ([]models.EnrollmentFact, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.EnrollmentFact
	for _, e := range f.enrollments {
		if scope.StudentID != "" && e.StudentID != scope.StudentID {
			continue
		}
		if scope.CourseID != "" && e.CourseID != scope.CourseID {
			continue
		}
		if scope.SemesterID != "" && e.SemesterID != scope.SemesterID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeAggregateStore) Semesters(ctx context.Context) ([]models.Semester, error) {
	return f.semesters, f.err
}

func (f *fakeAggregateStore) Departments(ctx context.Context) ([]models.Department, error) {
	return f.departments, f.err
}

func (f *fakeAggregateStore) CountCourses(ctx context.Context, activeOnly bool) (int, error) {
	if activeOnly {
		return f.active, f.err
	}
	return f.courses, f.err
}

func uniqueViolation() error {
	return &pq.Error{Code: "23505", Constraint: "enrollments_active_unique"}
}
