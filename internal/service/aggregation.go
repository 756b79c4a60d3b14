package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/grading"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/config"
)

// passingPoints is the GPA value a letter-only row needs to count as a pass.
const passingPoints = 1.0

// trendTolerance is the GPA movement below which a semester counts as stable.
const trendTolerance = 0.01

// aggregationPolicy holds the thresholds every aggregate is computed with.
type aggregationPolicy struct {
	passScore       float64
	atRisk          float64
	critical        float64
	creditsRequired int
}

func newAggregationPolicy(cfg config.GradingConfig) aggregationPolicy {
	p := aggregationPolicy{
		passScore:       cfg.PassScore,
		atRisk:          cfg.AtRiskThreshold,
		critical:        cfg.CriticalThreshold,
		creditsRequired: cfg.DefaultCreditsRequired,
	}
	if p.passScore <= 0 {
		p.passScore = 60
	}
	if p.atRisk <= 0 {
		p.atRisk = 70
	}
	if p.critical <= 0 || p.critical > p.atRisk {
		p.critical = 60
	}
	if p.creditsRequired <= 0 {
		p.creditsRequired = 60
	}
	return p
}

// observation is a grade fact that survived validation, with everything
// derived from it.
type observation struct {
	fact       models.GradeFact
	scored     bool
	score      float64
	letter     grading.Letter
	display    grading.Letter
	points     float64
	passed     bool
	department string
}

// observe derives an observation from a fact. Rows with neither a valid
// score nor a recognisable letter, or with an out of range score, are
// rejected so they never reach an aggregate.
func (p aggregationPolicy) observe(f models.GradeFact) (observation, bool) {
	obs := observation{fact: f}
	if f.Score != nil {
		if !grading.ValidScore(*f.Score) {
			return obs, false
		}
		obs.scored = true
		obs.score = *f.Score
	}
	letter, ok := gpaLetter(f.LetterGrade, f.Score)
	if !ok {
		return obs, false
	}
	obs.letter = letter
	obs.points = grading.GPAPoints(letter)
	obs.display, _ = grading.DisplayLetter(f.LetterGrade, f.Score)
	if obs.scored {
		obs.passed = obs.score >= p.passScore
	} else {
		obs.passed = obs.points >= passingPoints
	}
	obs.department = resolveDepartment(f.CourseDepartment, f.CourseDeptText, f.StudentDepartment)
	return obs, true
}

func (p aggregationPolicy) observeAll(facts []models.GradeFact) []observation {
	out := make([]observation, 0, len(facts))
	for _, f := range facts {
		if obs, ok := p.observe(f); ok {
			out = append(out, obs)
		}
	}
	return out
}

func (p aggregationPolicy) risk(average float64, scored int) dto.RiskLevel {
	switch {
	case scored == 0:
		return dto.RiskNone
	case average < p.critical:
		return dto.RiskCritical
	case average < p.atRisk:
		return dto.RiskAtRisk
	default:
		return dto.RiskNone
	}
}

// resolveDepartment walks the fallback chain: the course's relational
// department, the course's free-text department, the student's department.
func resolveDepartment(candidates ...*string) string {
	for _, c := range candidates {
		if name := optionalString(c); name != "" {
			return name
		}
	}
	return models.DepartmentOther
}

// tally accumulates score and pass statistics. Every ratio is zero for an
// empty tally.
type tally struct {
	sum    float64
	scored int
	usable int
	passed int
	min    float64
	max    float64
}

func (t *tally) add(o observation) {
	t.usable++
	if o.passed {
		t.passed++
	}
	if !o.scored {
		return
	}
	if t.scored == 0 || o.score < t.min {
		t.min = o.score
	}
	if t.scored == 0 || o.score > t.max {
		t.max = o.score
	}
	t.scored++
	t.sum += o.score
}

func (t tally) average() float64 {
	if t.scored == 0 {
		return 0
	}
	return round2(t.sum / float64(t.scored))
}

// passRate is a percentage of usable rows.
func (t tally) passRate() float64 {
	if t.usable == 0 {
		return 0
	}
	return round2(float64(t.passed) / float64(t.usable) * 100)
}

// gpaTally accumulates Σ(points×credits) and Σcredits.
type gpaTally struct {
	weighted float64
	credits  int
}

func (g *gpaTally) add(o observation) {
	if o.fact.Credits <= 0 {
		return
	}
	g.weighted += o.points * float64(o.fact.Credits)
	g.credits += o.fact.Credits
}

func (g gpaTally) gpa() float64 {
	if g.credits == 0 {
		return 0
	}
	return round2(g.weighted / float64(g.credits))
}

func offeringKey(courseID, semesterID string) string {
	return courseID + "|" + semesterID
}

// creditsEarned sums credits of non-F grades that have an owning
// enrollment, counting each (course, semester) once.
func creditsEarned(obs []observation) int {
	seen := make(map[string]struct{}, len(obs))
	total := 0
	for _, o := range obs {
		if o.fact.EnrollmentStatus == nil || !o.letter.Passing() {
			continue
		}
		key := offeringKey(o.fact.CourseID, o.fact.SemesterID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		total += o.fact.Credits
	}
	return total
}

// creditsInProgress sums credits of enrolled offerings with no grade yet.
func creditsInProgress(enrollments []models.EnrollmentFact) int {
	seen := make(map[string]struct{}, len(enrollments))
	total := 0
	for _, e := range enrollments {
		if e.Status != models.EnrollmentStatusEnrolled || e.HasGrade {
			continue
		}
		key := offeringKey(e.CourseID, e.SemesterID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		total += e.Credits
	}
	return total
}

func creditsRemaining(required, earned, inProgress int) int {
	remaining := required - earned - inProgress
	if remaining < 0 {
		return 0
	}
	return remaining
}

// summarizeStudent folds one student's rows. When no usable grade exists the
// stored GPA and credits are reported as the baseline.
func (p aggregationPolicy) summarizeStudent(student models.Student, facts []models.GradeFact, enrollments []models.EnrollmentFact) dto.StudentSummary {
	obs := p.observeAll(facts)

	var scores tally
	var gpa gpaTally
	for _, o := range obs {
		scores.add(o)
		gpa.add(o)
	}

	summary := dto.StudentSummary{
		StudentID:         student.ID,
		StudentCode:       student.StudentCode,
		FullName:          student.FullName,
		Department:        resolveDepartment(student.DepartmentName),
		Status:            student.Status,
		Average:           scores.average(),
		ScoredCount:       scores.scored,
		CreditsInProgress: creditsInProgress(enrollments),
		CreditsRequired:   student.CreditsRequired(p.creditsRequired),
		Semesters:         semesterPoints(obs),
	}
	summary.RiskLevel = p.risk(summary.Average, scores.scored)

	if len(obs) == 0 {
		summary.StandingSource = dto.StandingBaseline
		summary.CumulativeGPA = student.CumulativeGPA
		summary.CreditsEarned = student.TotalCreditsEarned
	} else {
		summary.StandingSource = dto.StandingComputed
		summary.CumulativeGPA = gpa.gpa()
		summary.CreditsEarned = creditsEarned(obs)
	}
	summary.CreditsRemaining = creditsRemaining(summary.CreditsRequired, summary.CreditsEarned, summary.CreditsInProgress)
	return summary
}

// semesterPoints groups observations by semester in start date order and
// marks each semester's GPA movement against the previous one.
func semesterPoints(obs []observation) []dto.SemesterPoint {
	type bucket struct {
		point  dto.SemesterPoint
		scores tally
		gpa    gpaTally
	}
	buckets := make(map[string]*bucket)
	var order []string
	for _, o := range obs {
		b, ok := buckets[o.fact.SemesterID]
		if !ok {
			b = &bucket{point: dto.SemesterPoint{
				SemesterID:   o.fact.SemesterID,
				SemesterName: o.fact.SemesterName,
				StartDate:    o.fact.SemesterStart,
			}}
			buckets[o.fact.SemesterID] = b
			order = append(order, o.fact.SemesterID)
		}
		b.scores.add(o)
		b.gpa.add(o)
		b.point.GradeCount++
		if o.fact.Credits > 0 {
			b.point.CreditsAttempted += o.fact.Credits
		}
	}

	points := make([]dto.SemesterPoint, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		b.point.GPA = b.gpa.gpa()
		b.point.Average = b.scores.average()
		points = append(points, b.point)
	}
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].StartDate.Equal(points[j].StartDate) {
			return points[i].SemesterName < points[j].SemesterName
		}
		return points[i].StartDate.Before(points[j].StartDate)
	})
	for i := 1; i < len(points); i++ {
		trend := models.GradeTrendStable
		delta := points[i].GPA - points[i-1].GPA
		switch {
		case delta > trendTolerance:
			trend = models.GradeTrendUp
		case delta < -trendTolerance:
			trend = models.GradeTrendDown
		}
		points[i].Trend = &trend
	}
	return points
}

func distribution(obs []observation) []dto.LetterCount {
	counts := make(map[grading.Letter]int)
	for _, o := range obs {
		if o.display != "" {
			counts[o.display]++
		}
	}
	out := make([]dto.LetterCount, 0, len(displayOrder))
	for _, letter := range displayOrder {
		if n := counts[letter]; n > 0 {
			out = append(out, dto.LetterCount{Letter: string(letter), Count: n})
		}
	}
	return out
}

var displayOrder = []grading.Letter{
	grading.APlus, grading.A, grading.AMinus,
	grading.BPlus, grading.B, grading.BMinus,
	grading.CPlus, grading.C, grading.CMinus,
	grading.DPlus, grading.D, grading.DMinus,
	grading.F,
}

func (p aggregationPolicy) courseStats(course models.Course, semesterID string, facts []models.GradeFact, enrollments []models.EnrollmentFact) dto.CourseStats {
	obs := p.observeAll(facts)
	var scores tally
	for _, o := range obs {
		scores.add(o)
	}
	stats := dto.CourseStats{
		CourseID:     course.ID,
		CourseCode:   course.Code,
		CourseName:   course.Name,
		SemesterID:   semesterID,
		Average:      scores.average(),
		Min:          scores.min,
		Max:          scores.max,
		PassRate:     scores.passRate(),
		GradeCount:   scores.usable,
		Distribution: distribution(obs),
	}
	for _, e := range enrollments {
		switch e.Status {
		case models.EnrollmentStatusEnrolled:
			stats.EnrolledCount++
		case models.EnrollmentStatusDropped:
			stats.DroppedCount++
		}
	}
	return stats
}

// departmentStats groups rows by resolved department. Known departments
// without rows are reported with zeroes.
func (p aggregationPolicy) departmentStats(departments []models.Department, facts []models.GradeFact) []dto.DepartmentStats {
	type group struct {
		scores   tally
		students map[string]*tally
	}
	groups := make(map[string]*group)
	ensure := func(name string) *group {
		g, ok := groups[name]
		if !ok {
			g = &group{students: make(map[string]*tally)}
			groups[name] = g
		}
		return g
	}
	for _, d := range departments {
		if name := strings.TrimSpace(d.Name); name != "" {
			ensure(name)
		}
	}
	for _, o := range p.observeAll(facts) {
		g := ensure(o.department)
		g.scores.add(o)
		st, ok := g.students[o.fact.StudentID]
		if !ok {
			st = &tally{}
			g.students[o.fact.StudentID] = st
		}
		st.add(o)
	}

	out := make([]dto.DepartmentStats, 0, len(groups))
	for name, g := range groups {
		row := dto.DepartmentStats{
			Department:   name,
			Average:      g.scores.average(),
			PassRate:     g.scores.passRate(),
			GradeCount:   g.scores.usable,
			StudentCount: len(g.students),
		}
		for _, st := range g.students {
			if p.risk(st.average(), st.scored) != dto.RiskNone {
				row.AtRiskCount++
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].Department == models.DepartmentOther) != (out[j].Department == models.DepartmentOther) {
			return out[j].Department == models.DepartmentOther
		}
		return out[i].Department < out[j].Department
	})
	return out
}

// semesterSeries reports every semester in start date order, including
// semesters with no rows.
func (p aggregationPolicy) semesterSeries(semesters []models.Semester, facts []models.GradeFact, enrollments []models.EnrollmentFact) []dto.SemesterStats {
	scores := make(map[string]*tally, len(semesters))
	for _, o := range p.observeAll(facts) {
		t, ok := scores[o.fact.SemesterID]
		if !ok {
			t = &tally{}
			scores[o.fact.SemesterID] = t
		}
		t.add(o)
	}
	enrolled := make(map[string]int)
	dropped := make(map[string]int)
	for _, e := range enrollments {
		switch e.Status {
		case models.EnrollmentStatusEnrolled:
			enrolled[e.SemesterID]++
		case models.EnrollmentStatusDropped:
			dropped[e.SemesterID]++
		}
	}

	ordered := append([]models.Semester(nil), semesters...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StartDate.Before(ordered[j].StartDate) })

	out := make([]dto.SemesterStats, 0, len(ordered))
	for _, sem := range ordered {
		row := dto.SemesterStats{
			SemesterID:    sem.ID,
			Name:          sem.Name,
			StartDate:     sem.StartDate,
			IsActive:      sem.IsActive,
			EnrolledCount: enrolled[sem.ID],
			DroppedCount:  dropped[sem.ID],
		}
		if t, ok := scores[sem.ID]; ok {
			row.Average = t.average()
			row.PassRate = t.passRate()
			row.GradeCount = t.usable
		}
		out = append(out, row)
	}
	return out
}

// atRiskRoster lists students whose average falls below the at-risk
// threshold, lowest first. limit <= 0 means no limit; Total always counts
// every flagged student.
func (p aggregationPolicy) atRiskRoster(students []models.Student, facts []models.GradeFact, department string, limit int) dto.AtRiskRoster {
	perStudent := make(map[string]*tally)
	for _, o := range p.observeAll(facts) {
		t, ok := perStudent[o.fact.StudentID]
		if !ok {
			t = &tally{}
			perStudent[o.fact.StudentID] = t
		}
		t.add(o)
	}

	roster := dto.AtRiskRoster{Students: []dto.AtRiskStudent{}}
	for _, s := range students {
		t, ok := perStudent[s.ID]
		if !ok {
			continue
		}
		dept := resolveDepartment(s.DepartmentName)
		if department != "" && !strings.EqualFold(dept, department) {
			continue
		}
		avg := t.average()
		level := p.risk(avg, t.scored)
		if level == dto.RiskNone {
			continue
		}
		roster.Total++
		if level == dto.RiskCritical {
			roster.Critical++
		}
		roster.Students = append(roster.Students, dto.AtRiskStudent{
			StudentID:   s.ID,
			StudentCode: s.StudentCode,
			FullName:    s.FullName,
			Department:  dept,
			Average:     avg,
			RiskLevel:   level,
			Status:      s.Status,
		})
	}
	sort.SliceStable(roster.Students, func(i, j int) bool {
		if roster.Students[i].Average == roster.Students[j].Average {
			return roster.Students[i].StudentCode < roster.Students[j].StudentCode
		}
		return roster.Students[i].Average < roster.Students[j].Average
	})
	if limit > 0 && len(roster.Students) > limit {
		roster.Students = roster.Students[:limit]
	}
	return roster
}

// overviewInput is everything the system-wide overview is computed from.
type overviewInput struct {
	students      []models.Student
	gradeFacts    []models.GradeFact
	semesters     []models.Semester
	totalCourses  int
	activeCourses int
}

func (p aggregationPolicy) overview(in overviewInput, rosterLimit int) dto.OverviewStats {
	obs := p.observeAll(in.gradeFacts)
	var scores tally
	byStudent := make(map[string][]observation)
	for _, o := range obs {
		scores.add(o)
		byStudent[o.fact.StudentID] = append(byStudent[o.fact.StudentID], o)
	}

	stats := dto.OverviewStats{
		TotalStudents: len(in.students),
		TotalCourses:  in.totalCourses,
		ActiveCourses: in.activeCourses,
		Average:       scores.average(),
		PassRate:      scores.passRate(),
		Distribution:  distribution(obs),
		AtRisk:        p.atRiskRoster(in.students, in.gradeFacts, "", rosterLimit),
	}
	for _, sem := range in.semesters {
		if sem.IsActive {
			stats.ActiveSemester = &dto.SemesterRef{ID: sem.ID, Name: sem.Name}
			break
		}
	}

	for _, s := range in.students {
		earned := s.TotalCreditsEarned
		if rows := byStudent[s.ID]; len(rows) > 0 {
			earned = creditsEarned(rows)
		}
		if earned >= s.CreditsRequired(p.creditsRequired) {
			stats.Graduated++
		}
	}
	if stats.TotalStudents > 0 {
		stats.GraduationRate = round2(float64(stats.Graduated) / float64(stats.TotalStudents) * 100)
	}
	return stats
}
