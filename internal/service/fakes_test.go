package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/levelup-edu/levelup-api/internal/dto"
	"github.com/levelup-edu/levelup-api/internal/models"
	"github.com/levelup-edu/levelup-api/internal/repository"
)

// memStore is an in-memory stand-in for the database shared by the fake repositories.
type memStore struct {
	mu            sync.Mutex
	nextID        int64
	instructors   map[string]*models.Instructor
	students      map[string]*models.Student
	courses       map[int64]*models.Course
	registrations map[string]bool
	quests        map[int64]*models.Quest
	submissions   map[int64]*models.Submission
	transactions  []models.Transaction
	rewards       map[int64]*models.Reward
	redemptions   map[int64]*models.Redemption

	courseCreateErrs []error
	failWith         error
}

func newMemStore() *memStore {
	return &memStore{
		instructors:   map[string]*models.Instructor{},
		students:      map[string]*models.Student{},
		courses:       map[int64]*models.Course{},
		registrations: map[string]bool{},
		quests:        map[int64]*models.Quest{},
		submissions:   map[int64]*models.Submission{},
		rewards:       map[int64]*models.Reward{},
		redemptions:   map[int64]*models.Redemption{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func regKey(email string, courseID int64) string {
	return fmt.Sprintf("%s#%d", email, courseID)
}

func (m *memStore) balance(email string) int {
	total := 0
	for _, t := range m.transactions {
		if t.StudentEmail == email {
			total += t.Points
		}
	}
	return total
}

func (m *memStore) appendTransaction(params dto.CreateTransactionParams) *models.Transaction {
	txn := models.Transaction{
		ID:              m.id(),
		StudentEmail:    params.StudentEmail,
		Points:          params.Points,
		TransactionDate: time.Now().UTC(),
		SubmissionID:    params.SubmissionID,
		RedemptionID:    params.RedemptionID,
	}
	m.transactions = append(m.transactions, txn)
	return &txn
}

func (m *memStore) redeemedCount(rewardID int64) int {
	count := 0
	for _, r := range m.redemptions {
		if r.RewardID == rewardID && r.Status != models.RedemptionCancelled {
			count++
		}
	}
	return count
}

type fakeInstructorRepo struct{ *memStore }

func (f fakeInstructorRepo) FindByEmail(ctx context.Context, email string) (*models.Instructor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i, ok := f.instructors[email]; ok {
		clone := *i
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f fakeInstructorRepo) Create(ctx context.Context, instructor *models.Instructor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *instructor
	f.instructors[instructor.Email] = &clone
	return nil
}

type fakeStudentRepo struct{ *memStore }

func (f fakeStudentRepo) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.students[email]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *student
	f.students[student.Email] = &clone
	return nil
}

func (f fakeStudentRepo) UpdateLastSignin(ctx context.Context, email string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.students[email]; ok {
		s.LastSignin = &ts
	}
	return nil
}

func (f fakeStudentRepo) ListByInstructor(ctx context.Context, instructorEmail string) ([]dto.InstructorStudent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for key := range f.registrations {
		email := keyEmail(key)
		for id, c := range f.courses {
			if c.InstructorEmail == instructorEmail && key == regKey(email, id) {
				counts[email]++
			}
		}
	}
	out := []dto.InstructorStudent{}
	for email, n := range counts {
		s := f.students[email]
		out = append(out, dto.InstructorStudent{Email: email, Name: s.Name, LastSignin: s.LastSignin, CourseCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func keyEmail(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '#' {
			return key[:i]
		}
	}
	return key
}

type fakeCourseRepo struct{ *memStore }

func (f fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.courseCreateErrs) > 0 {
		err := f.courseCreateErrs[0]
		f.courseCreateErrs = f.courseCreateErrs[1:]
		return err
	}
	course.ID = f.id()
	course.CreatedAt = time.Now().UTC()
	clone := *course
	f.courses[course.ID] = &clone
	return nil
}

func (f fakeCourseRepo) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	if c, ok := f.courses[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f fakeCourseRepo) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.courses {
		if c.CourseCode == code {
			clone := *c
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeCourseRepo) ListByInstructor(ctx context.Context, instructorEmail string) ([]models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Course{}
	for _, c := range f.courses {
		if c.InstructorEmail == instructorEmail {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f fakeCourseRepo) ListByStudent(ctx context.Context, studentEmail string) ([]models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Course{}
	for id, c := range f.courses {
		if f.registrations[regKey(studentEmail, id)] {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f fakeCourseRepo) IsRegistered(ctx context.Context, studentEmail string, courseID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registrations[regKey(studentEmail, courseID)], nil
}

func (f fakeCourseRepo) Register(ctx context.Context, registration *models.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	registration.ID = f.id()
	f.registrations[regKey(registration.StudentEmail, registration.CourseID)] = true
	return nil
}

type fakeQuestRepo struct{ *memStore }

func (f fakeQuestRepo) Create(ctx context.Context, quest *models.Quest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	quest.ID = f.id()
	clone := *quest
	f.quests[quest.ID] = &clone
	return nil
}

func (f fakeQuestRepo) FindByID(ctx context.Context, id int64) (*models.Quest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q, ok := f.quests[id]; ok {
		clone := *q
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f fakeQuestRepo) ListByCourse(ctx context.Context, courseID int64) ([]models.Quest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Quest{}
	for _, q := range f.quests {
		if q.CourseID == courseID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f fakeQuestRepo) ListByInstructor(ctx context.Context, instructorEmail string) ([]dto.QuestWithCourse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []dto.QuestWithCourse{}
	for _, q := range f.quests {
		c := f.courses[q.CourseID]
		if c != nil && c.InstructorEmail == instructorEmail {
			out = append(out, dto.QuestWithCourse{Quest: *q, Course: dto.CourseSummary{ID: c.ID, Title: c.Title, CourseCode: c.CourseCode}})
		}
	}
	return out, nil
}

func (f fakeQuestRepo) DeleteOwned(ctx context.Context, id int64, instructorEmail string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quests[id]
	if !ok {
		return false, nil
	}
	if c := f.courses[q.CourseID]; c == nil || c.InstructorEmail != instructorEmail {
		return false, nil
	}
	delete(f.quests, id)
	return true, nil
}

func (f fakeQuestRepo) ListAvailableForStudent(ctx context.Context, courseID int64, studentEmail string, now time.Time) ([]models.Quest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Quest{}
	for _, q := range f.quests {
		if q.CourseID != courseID || q.Expired(now) {
			continue
		}
		taken := false
		for _, s := range f.submissions {
			if s.QuestID == q.ID && s.StudentEmail == studentEmail {
				taken = true
			}
		}
		if !taken {
			out = append(out, *q)
		}
	}
	return out, nil
}

type fakeSubmissionRepo struct{ *memStore }

func (f fakeSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	submission.ID = f.id()
	clone := *submission
	f.submissions[submission.ID] = &clone
	return nil
}

func (f fakeSubmissionRepo) FindByID(ctx context.Context, id int64) (*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.submissions[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f fakeSubmissionRepo) ExistsForStudent(ctx context.Context, studentEmail string, questID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.submissions {
		if s.StudentEmail == studentEmail && s.QuestID == questID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeSubmissionRepo) ListByQuest(ctx context.Context, questID int64) ([]dto.SubmissionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []dto.SubmissionDetail{}
	for _, s := range f.submissions {
		if s.QuestID == questID {
			name := ""
			if st := f.students[s.StudentEmail]; st != nil {
				name = st.Name
			}
			out = append(out, dto.SubmissionDetail{Submission: *s, StudentName: name})
		}
	}
	return out, nil
}

func (f fakeSubmissionRepo) ListByStudent(ctx context.Context, studentEmail string) ([]dto.StudentSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []dto.StudentSubmission{}
	for _, s := range f.submissions {
		if s.StudentEmail == studentEmail {
			q := f.quests[s.QuestID]
			out = append(out, dto.StudentSubmission{Submission: *s, QuestTitle: q.Title, QuestPoints: q.Points, CourseID: q.CourseID})
		}
	}
	return out, nil
}

// Verify mirrors the locked read-check-write of the SQL implementation; the mutex plays the
// role of the row lock.
func (f fakeSubmissionRepo) Verify(ctx context.Context, params dto.VerifySubmissionParams) (*dto.VerificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.submissions[params.SubmissionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if s.Status != models.SubmissionPending {
		return nil, repository.ErrSubmissionProcessed
	}
	now := time.Now().UTC()
	verifier := params.VerifiedBy
	s.Status = params.Status
	s.VerifiedBy = &verifier
	s.VerifiedDate = &now
	result := &dto.VerificationResult{Submission: *s}
	if params.Status == models.SubmissionApproved {
		id := s.ID
		result.Transaction = f.appendTransaction(dto.CreateTransactionParams{StudentEmail: s.StudentEmail, Points: params.Points, SubmissionID: &id})
	}
	return result, nil
}

type fakeLedgerRepo struct{ *memStore }

func (f fakeLedgerRepo) Create(ctx context.Context, params dto.CreateTransactionParams) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if params.SubmissionID != nil && params.RedemptionID != nil {
		return nil, repository.ErrAmbiguousSource
	}
	return f.appendTransaction(params), nil
}

func (f fakeLedgerRepo) SumByStudent(ctx context.Context, studentEmail string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance(studentEmail), nil
}

func (f fakeLedgerRepo) ListByStudent(ctx context.Context, studentEmail string) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Transaction{}
	for i := len(f.transactions) - 1; i >= 0; i-- {
		if f.transactions[i].StudentEmail == studentEmail {
			out = append(out, f.transactions[i])
		}
	}
	return out, nil
}

func (f fakeLedgerRepo) ClaimedSubmissionIDs(ctx context.Context, studentEmail string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []int64{}
	for _, t := range f.transactions {
		if t.StudentEmail == studentEmail && t.SubmissionID != nil {
			out = append(out, *t.SubmissionID)
		}
	}
	return out, nil
}

func (f fakeLedgerRepo) CourseLedger(ctx context.Context, courseID int64) ([]dto.CourseLedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []dto.CourseLedgerEntry{}
	for key := range f.registrations {
		email := keyEmail(key)
		if key != regKey(email, courseID) {
			continue
		}
		entry := dto.CourseLedgerEntry{StudentEmail: email, StudentName: f.students[email].Name, Balance: f.balance(email)}
		for _, t := range f.transactions {
			if t.StudentEmail != email {
				continue
			}
			if t.SubmissionID != nil && f.quests[f.submissions[*t.SubmissionID].QuestID].CourseID == courseID {
				entry.Earned += t.Points
			}
			if t.RedemptionID != nil && f.rewards[f.redemptions[*t.RedemptionID].RewardID].CourseID == courseID {
				entry.Spent -= t.Points
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

type fakeRewardRepo struct{ *memStore }

func (f fakeRewardRepo) Create(ctx context.Context, reward *models.Reward) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reward.ID = f.id()
	reward.CreatedDate = time.Now().UTC()
	clone := *reward
	f.rewards[reward.ID] = &clone
	return nil
}

func (f fakeRewardRepo) FindByID(ctx context.Context, id int64) (*models.Reward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rewards[id]; ok {
		clone := *r
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f fakeRewardRepo) FindUsage(ctx context.Context, id int64) (*dto.RewardUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rewards[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &dto.RewardUsage{Reward: *r, Redeemed: f.redeemedCount(id)}, nil
}

func (f fakeRewardRepo) ListUsageByCourse(ctx context.Context, courseID int64) ([]dto.RewardUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []dto.RewardUsage{}
	for _, r := range f.rewards {
		if r.CourseID == courseID {
			out = append(out, dto.RewardUsage{Reward: *r, Redeemed: f.redeemedCount(r.ID)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeRewardRepo) SetActive(ctx context.Context, id int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rewards[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Active = active
	return nil
}

type fakeRedemptionRepo struct{ *memStore }

func (f fakeRedemptionRepo) Redeem(ctx context.Context, rewardID int64, studentEmail string) (*dto.RedeemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reward, ok := f.rewards[rewardID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if _, available := reward.Availability(f.redeemedCount(rewardID)); !available {
		return nil, repository.ErrRewardUnavailable
	}
	balance := f.balance(studentEmail)
	if balance < reward.Cost {
		return nil, repository.ErrInsufficientPoints
	}
	redemption := &models.Redemption{
		ID:             f.id(),
		RewardID:       rewardID,
		StudentEmail:   studentEmail,
		Status:         models.RedemptionPending,
		RedemptionDate: time.Now().UTC(),
	}
	f.redemptions[redemption.ID] = redemption
	id := redemption.ID
	debit := f.appendTransaction(dto.CreateTransactionParams{StudentEmail: studentEmail, Points: -reward.Cost, RedemptionID: &id})
	return &dto.RedeemResult{Redemption: *redemption, Transaction: *debit, Balance: balance - reward.Cost}, nil
}

func (f fakeRedemptionRepo) detail(r *models.Redemption) dto.RedemptionDetail {
	reward := f.rewards[r.RewardID]
	name := ""
	if s := f.students[r.StudentEmail]; s != nil {
		name = s.Name
	}
	return dto.RedemptionDetail{Redemption: *r, RewardName: reward.Name, Cost: reward.Cost, CourseID: reward.CourseID, StudentName: name}
}

func (f fakeRedemptionRepo) FindDetailByID(ctx context.Context, id int64) (*dto.RedemptionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.redemptions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d := f.detail(r)
	return &d, nil
}

func (f fakeRedemptionRepo) ListByReward(ctx context.Context, rewardID int64) ([]dto.RedemptionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []dto.RedemptionDetail{}
	for _, r := range f.redemptions {
		if r.RewardID == rewardID {
			out = append(out, f.detail(r))
		}
	}
	return out, nil
}

func (f fakeRedemptionRepo) ListByStudent(ctx context.Context, studentEmail string) ([]dto.RedemptionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []dto.RedemptionDetail{}
	for _, r := range f.redemptions {
		if r.StudentEmail == studentEmail {
			out = append(out, f.detail(r))
		}
	}
	return out, nil
}

func (f fakeRedemptionRepo) UpdateStatus(ctx context.Context, id int64, status models.RedemptionStatus) (*dto.RedemptionUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.redemptions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if r.Status != models.RedemptionPending {
		return nil, repository.ErrRedemptionProcessed
	}
	now := time.Now().UTC()
	r.Status = status
	r.UpdatedDate = &now
	result := &dto.RedemptionUpdate{Redemption: *r}
	if status == models.RedemptionCancelled {
		redemptionID := id
		result.Refund = f.appendTransaction(dto.CreateTransactionParams{
			StudentEmail: r.StudentEmail,
			Points:       f.rewards[r.RewardID].Cost,
			RedemptionID: &redemptionID,
		})
	}
	return result, nil
}

// fixture wires every service over one memStore.
type fixture struct {
	store       *memStore
	metrics     *MetricsService
	auth        *AuthService
	courses     *CourseService
	quests      *QuestService
	submissions *SubmissionService
	ledger      *LedgerService
	rewards     *RewardService
	exports     *ExportService
}

func newFixture() *fixture {
	store := newMemStore()
	metrics := NewMetricsService()
	courseRepo := fakeCourseRepo{store}
	questRepo := fakeQuestRepo{store}
	submissionRepo := fakeSubmissionRepo{store}
	ledger := NewLedgerService(fakeLedgerRepo{store}, courseRepo, metrics, nil)
	return &fixture{
		store:   store,
		metrics: metrics,
		auth: NewAuthService(fakeInstructorRepo{store}, fakeStudentRepo{store}, nil, nil, AuthConfig{
			AccessTokenSecret: "test-secret",
			AccessTokenExpiry: time.Hour,
			Issuer:            "levelup-test",
		}),
		courses:     NewCourseService(courseRepo, fakeStudentRepo{store}, nil, nil, CourseConfig{}),
		quests:      NewQuestService(questRepo, courseRepo, submissionRepo, nil, nil),
		submissions: NewSubmissionService(questRepo, courseRepo, submissionRepo, metrics, nil, nil),
		ledger:      ledger,
		rewards:     NewRewardService(fakeRewardRepo{store}, fakeRedemptionRepo{store}, courseRepo, nil, metrics, nil, nil, RewardConfig{}),
		exports:     NewExportService(ledger, nil, nil, nil),
	}
}

func instructorClaims(email string) *models.JWTClaims {
	return &models.JWTClaims{Email: email, Name: "Instructor " + email, Role: models.RoleInstructor}
}

func studentClaims(email string) *models.JWTClaims {
	return &models.JWTClaims{Email: email, Name: "Student " + email, Role: models.RoleStudent}
}

func (f *fixture) addStudent(email, name string) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.students[email] = &models.Student{Email: email, Name: name}
}
