package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levelup-edu/levelup-api/internal/dto"
	"github.com/levelup-edu/levelup-api/internal/models"
	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
)

type questScenario struct {
	f          *fixture
	instructor *models.JWTClaims
	student    *models.JWTClaims
	course     *models.Course
	quest      *models.Quest
}

// newQuestScenario sets up CS101 with a 10 point "Quiz 1" and a registered student.
func newQuestScenario(t *testing.T) *questScenario {
	t.Helper()
	ctx := context.Background()
	f := newFixture()
	ada := instructorClaims("ada@school.test")
	sam := studentClaims("sam@school.test")
	f.addStudent(sam.Email, "Sam")

	course := seedCourse(t, f, ada.Email)
	quest, err := f.quests.CreateQuest(ctx, ada, dto.CreateQuestRequest{CourseID: course.ID, Title: "Quiz 1", Points: 10})
	require.NoError(t, err)
	_, err = f.courses.RegisterStudent(ctx, sam, dto.RegisterCourseRequest{CourseCode: course.CourseCode})
	require.NoError(t, err)

	return &questScenario{f: f, instructor: ada, student: sam, course: course, quest: quest}
}

func (s *questScenario) points(t *testing.T) int {
	t.Helper()
	balance, err := s.f.ledger.GetStudentPoints(context.Background(), s.student)
	require.NoError(t, err)
	return balance.Points
}

func TestScenarioHappyPath(t *testing.T) {
	s := newQuestScenario(t)
	ctx := context.Background()

	submission, err := s.f.submissions.AttendQuest(ctx, s.student, dto.AttendQuestRequest{QuestID: s.quest.ID})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPending, submission.Status)
	assert.Empty(t, s.f.store.transactions)

	result, err := s.f.submissions.VerifySubmission(ctx, s.instructor, s.quest.ID, submission.ID, dto.VerifySubmissionRequest{Action: dto.ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, result.Submission.Status)
	require.NotNil(t, result.Transaction)
	assert.Equal(t, 10, result.Transaction.Points)
	assert.Equal(t, 10, s.points(t))

	claimed, err := s.f.ledger.GetClaimedSubmissionIDs(ctx, s.student)
	require.NoError(t, err)
	assert.Equal(t, []int64{submission.ID}, claimed)
}

func TestScenarioRejectionPath(t *testing.T) {
	s := newQuestScenario(t)
	ctx := context.Background()

	submission, err := s.f.submissions.AttendQuest(ctx, s.student, dto.AttendQuestRequest{QuestID: s.quest.ID})
	require.NoError(t, err)

	result, err := s.f.submissions.VerifySubmission(ctx, s.instructor, s.quest.ID, submission.ID, dto.VerifySubmissionRequest{Action: dto.ActionReject})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionRejected, result.Submission.Status)
	assert.Nil(t, result.Transaction)
	assert.Empty(t, s.f.store.transactions)
	assert.Equal(t, 0, s.points(t))
}

func TestScenarioUnauthorizedVerify(t *testing.T) {
	s := newQuestScenario(t)
	ctx := context.Background()

	submission, err := s.f.submissions.AttendQuest(ctx, s.student, dto.AttendQuestRequest{QuestID: s.quest.ID})
	require.NoError(t, err)

	_, err = s.f.submissions.VerifySubmission(ctx, instructorClaims("bob@school.test"), s.quest.ID, submission.ID, dto.VerifySubmissionRequest{Action: dto.ActionApprove})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, models.SubmissionPending, s.f.store.submissions[submission.ID].Status)
	assert.Empty(t, s.f.store.transactions)
}

func TestVerifySubmissionIsIdempotent(t *testing.T) {
	s := newQuestScenario(t)
	ctx := context.Background()

	submission, err := s.f.submissions.AttendQuest(ctx, s.student, dto.AttendQuestRequest{QuestID: s.quest.ID})
	require.NoError(t, err)

	_, err = s.f.submissions.VerifySubmission(ctx, s.instructor, s.quest.ID, submission.ID, dto.VerifySubmissionRequest{Action: dto.ActionApprove})
	require.NoError(t, err)

	for _, action := range []string{dto.ActionApprove, dto.ActionReject} {
		_, err = s.f.submissions.VerifySubmission(ctx, s.instructor, s.quest.ID, submission.ID, dto.VerifySubmissionRequest{Action: action})
		assert.ErrorIs(t, err, appErrors.ErrConflict)
	}
	assert.Len(t, s.f.store.transactions, 1)
	assert.Equal(t, models.SubmissionApproved, s.f.store.submissions[submission.ID].Status)
}

func TestVerifySubmissionConcurrentCreditsOnce(t *testing.T) {
	s := newQuestScenario(t)
	ctx := context.Background()

	submission, err := s.f.submissions.AttendQuest(ctx, s.student, dto.AttendQuestRequest{QuestID: s.quest.ID})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.f.submissions.VerifySubmission(ctx, s.instructor, s.quest.ID, submission.ID, dto.VerifySubmissionRequest{Action: dto.ActionApprove})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, appErrors.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, s.f.store.transactions, 1)
	assert.Equal(t, 10, s.points(t))
}

func TestVerifySubmissionValidationAndLookup(t *testing.T) {
	s := newQuestScenario(t)
	ctx := context.Background()

	submission, err := s.f.submissions.AttendQuest(ctx, s.student, dto.AttendQuestRequest{QuestID: s.quest.ID})
	require.NoError(t, err)

	_, err = s.f.submissions.VerifySubmission(ctx, s.instructor, s.quest.ID, submission.ID, dto.VerifySubmissionRequest{Action: "maybe"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = s.f.submissions.VerifySubmission(ctx, s.instructor, s.quest.ID, 9999, dto.VerifySubmissionRequest{Action: dto.ActionApprove})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	other, err := s.f.quests.CreateQuest(ctx, s.instructor, dto.CreateQuestRequest{CourseID: s.course.ID, Title: "Quiz 2", Points: 5})
	require.NoError(t, err)
	_, err = s.f.submissions.VerifySubmission(ctx, s.instructor, other.ID, submission.ID, dto.VerifySubmissionRequest{Action: dto.ActionApprove})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAttendQuestRules(t *testing.T) {
	s := newQuestScenario(t)
	ctx := context.Background()

	_, err := s.f.submissions.AttendQuest(ctx, s.student, dto.AttendQuestRequest{QuestID: 9999})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	outsider := studentClaims("kim@school.test")
	_, err = s.f.submissions.AttendQuest(ctx, outsider, dto.AttendQuestRequest{QuestID: s.quest.ID})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = s.f.submissions.AttendQuest(ctx, s.student, dto.AttendQuestRequest{QuestID: s.quest.ID})
	require.NoError(t, err)
	_, err = s.f.submissions.AttendQuest(ctx, s.student, dto.AttendQuestRequest{QuestID: s.quest.ID})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = s.f.submissions.AttendQuest(ctx, s.student, dto.AttendQuestRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAttendQuestExpired(t *testing.T) {
	s := newQuestScenario(t)
	s.f.submissions.now = func() time.Time { return time.Now().Add(72 * time.Hour) }
	expires := time.Now().Add(24 * time.Hour)
	s.f.store.quests[s.quest.ID].ExpirationDate = &expires

	_, err := s.f.submissions.AttendQuest(context.Background(), s.student, dto.AttendQuestRequest{QuestID: s.quest.ID})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Empty(t, s.f.store.submissions)
}

func TestListAvailableQuestsExcludesSubmitted(t *testing.T) {
	s := newQuestScenario(t)
	ctx := context.Background()
	second, err := s.f.quests.CreateQuest(ctx, s.instructor, dto.CreateQuestRequest{CourseID: s.course.ID, Title: "Quiz 2", Points: 5})
	require.NoError(t, err)

	submission, err := s.f.submissions.AttendQuest(ctx, s.student, dto.AttendQuestRequest{QuestID: s.quest.ID})
	require.NoError(t, err)
	_, err = s.f.submissions.VerifySubmission(ctx, s.instructor, s.quest.ID, submission.ID, dto.VerifySubmissionRequest{Action: dto.ActionReject})
	require.NoError(t, err)

	quests, err := s.f.submissions.ListAvailableQuests(ctx, s.student, s.course.ID)
	require.NoError(t, err)
	require.Len(t, quests, 1)
	assert.Equal(t, second.ID, quests[0].ID)

	mine, err := s.f.submissions.ListStudentSubmissions(ctx, s.student)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Quiz 1", mine[0].QuestTitle)

	_, err = s.f.submissions.ListAvailableQuests(ctx, studentClaims("kim@school.test"), s.course.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
