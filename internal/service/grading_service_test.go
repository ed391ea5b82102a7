package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"

	"gorm.io/gorm"
)

type fakeQuizStore struct {
	quizzes   map[uint]*model.Quiz
	questions map[uint][]model.QuizQuestion
}

func newFakeQuizStore() *fakeQuizStore {
	return &fakeQuizStore{
		quizzes:   make(map[uint]*model.Quiz),
		questions: make(map[uint][]model.QuizQuestion),
	}
}

func (f *fakeQuizStore) FindQuizByID(id uint) (*model.Quiz, error) {
	quiz, ok := f.quizzes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return quiz, nil
}

func (f *fakeQuizStore) ListQuestions(quizID uint) ([]model.QuizQuestion, error) {
	return f.questions[quizID], nil
}

type fakeAnswerStore struct {
	mu          sync.Mutex
	records     map[string]model.AnswerRecord
	insertErr   error
	insertCalls int
}

func newFakeAnswerStore() *fakeAnswerStore {
	return &fakeAnswerStore{records: make(map[string]model.AnswerRecord)}
}

func recordKey(quizID, userID, questionID uint) string {
	return fmt.Sprintf("%d:%d:%d", quizID, userID, questionID)
}

func (f *fakeAnswerStore) CountByQuizAndUser(quizID, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for _, r := range f.records {
		if r.QuizID == quizID && r.UserID == userID {
			count++
		}
	}
	return count, nil
}

// InsertBatch 模拟唯一索引下的事务批量写入：任何一条冲突则整批失败
func (f *fakeAnswerStore) InsertBatch(records []model.AnswerRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.insertCalls++
	if f.insertErr != nil {
		return f.insertErr
	}

	for _, r := range records {
		if _, exists := f.records[recordKey(r.QuizID, r.UserID, r.QuestionID)]; exists {
			return util.ErrAlreadySubmitted
		}
	}
	for _, r := range records {
		f.records[recordKey(r.QuizID, r.UserID, r.QuestionID)] = r
	}
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	calls  int
	userID uint
	amount int
	err    error
}

func (f *fakeNotifier) AwardExperience(userID uint, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.userID = userID
	f.amount = amount
	return f.err
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func singleAnswer(v string) model.SubmittedAnswer {
	return model.SubmittedAnswer{Present: true, Value: v}
}

func multiAnswer(vs ...string) model.SubmittedAnswer {
	return model.SubmittedAnswer{Present: true, IsList: true, Values: vs}
}

// twoQuestionQuiz: Q1 单选 options [A,B,C] 答案 "B"；Q2 多选 options [X,Y,Z] 答案 {X,Z}
func twoQuestionQuiz(t *testing.T) *fakeQuizStore {
	t.Helper()
	store := newFakeQuizStore()
	store.quizzes[1] = &model.Quiz{BaseModel: model.BaseModel{ID: 1}, Title: "C语言基础测验"}
	store.questions[1] = []model.QuizQuestion{
		{
			BaseModel:    model.BaseModel{ID: 10},
			QuizID:       1,
			QuestionText: "Q1",
			QuestionType: model.SingleChoice,
			Options:      mustJSON(t, []string{"A", "B", "C"}),
			Solution:     mustJSON(t, "B"),
		},
		{
			BaseModel:    model.BaseModel{ID: 11},
			QuizID:       1,
			QuestionText: "Q2",
			QuestionType: model.MultipleChoice,
			Options:      mustJSON(t, []string{"X", "Y", "Z"}),
			Solution:     mustJSON(t, []string{"X", "Z"}),
		},
	}
	return store
}

func TestIsCorrect(t *testing.T) {
	singleSol := model.Solution{Type: model.SingleChoice, Single: "B"}
	multiSol := model.Solution{Type: model.MultipleChoice, Multiple: []string{"X", "Z"}}

	tests := []struct {
		name     string
		qt       model.QuestionType
		answer   model.SubmittedAnswer
		solution model.Solution
		want     bool
	}{
		{"single correct", model.SingleChoice, singleAnswer("B"), singleSol, true},
		{"single wrong", model.SingleChoice, singleAnswer("A"), singleSol, false},
		{"single absent", model.SingleChoice, model.SubmittedAnswer{}, singleSol, false},
		{"single got list", model.SingleChoice, multiAnswer("B"), singleSol, false},
		{"multi correct", model.MultipleChoice, multiAnswer("X", "Z"), multiSol, true},
		{"multi order irrelevant", model.MultipleChoice, multiAnswer("Z", "X"), multiSol, true},
		{"multi duplicates ignored", model.MultipleChoice, multiAnswer("Z", "X", "X"), multiSol, true},
		{"multi missing selection", model.MultipleChoice, multiAnswer("X"), multiSol, false},
		{"multi extra selection", model.MultipleChoice, multiAnswer("X", "Z", "Y"), multiSol, false},
		{"multi got scalar", model.MultipleChoice, singleAnswer("X"), multiSol, false},
		{"multi absent", model.MultipleChoice, model.SubmittedAnswer{}, multiSol, false},
		{"multi empty list", model.MultipleChoice, multiAnswer(), multiSol, false},
		{"unknown type", model.QuestionType("essay"), singleAnswer("B"), singleSol, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCorrect(tt.qt, tt.answer, tt.solution); got != tt.want {
				t.Errorf("IsCorrect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubmitQuiz_AllCorrect(t *testing.T) {
	quizzes := twoQuestionQuiz(t)
	answers := newFakeAnswerStore()
	reward := &fakeNotifier{}
	svc := NewGradingService(quizzes, answers, reward)

	result, err := svc.SubmitQuiz(7, 1, QuizSubmission{Answers: map[uint]model.SubmittedAnswer{
		10: singleAnswer("B"),
		11: multiAnswer("Z", "X"),
	}})
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}

	if result.Score != 2 || result.Total != 2 {
		t.Errorf("score = %d/%d, want 2/2", result.Score, result.Total)
	}
	if !result.Rewarded {
		t.Error("first submission should be rewarded")
	}
	for i, fb := range result.Feedback {
		if !fb.IsCorrect {
			t.Errorf("feedback[%d].IsCorrect = false, want true", i)
		}
	}
	if len(answers.records) != 2 {
		t.Errorf("persisted records = %d, want 2", len(answers.records))
	}
	if reward.calls != 1 {
		t.Errorf("reward calls = %d, want 1", reward.calls)
	}
	if reward.userID != 7 || reward.amount != util.QuizCompletionXP {
		t.Errorf("reward = (%d, %d), want (7, %d)", reward.userID, reward.amount, util.QuizCompletionXP)
	}
}

func TestSubmitQuiz_AllWrong(t *testing.T) {
	quizzes := twoQuestionQuiz(t)
	answers := newFakeAnswerStore()
	reward := &fakeNotifier{}
	svc := NewGradingService(quizzes, answers, reward)

	result, err := svc.SubmitQuiz(7, 1, QuizSubmission{Answers: map[uint]model.SubmittedAnswer{
		10: singleAnswer("A"),
		11: multiAnswer("X"),
	}})
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}

	if result.Score != 0 || result.Total != 2 {
		t.Errorf("score = %d/%d, want 0/2", result.Score, result.Total)
	}
	// 错误答案也要落库，首次提交仍然发放奖励
	if len(answers.records) != 2 {
		t.Errorf("persisted records = %d, want 2", len(answers.records))
	}
	if reward.calls != 1 {
		t.Errorf("reward calls = %d, want 1", reward.calls)
	}
	for key, r := range answers.records {
		if r.Correct {
			t.Errorf("record %s marked correct, want incorrect", key)
		}
	}
}

func TestSubmitQuiz_UnansweredQuestionRecordedAsNull(t *testing.T) {
	quizzes := twoQuestionQuiz(t)
	answers := newFakeAnswerStore()
	svc := NewGradingService(quizzes, answers, &fakeNotifier{})

	result, err := svc.SubmitQuiz(7, 1, QuizSubmission{Answers: map[uint]model.SubmittedAnswer{
		10: singleAnswer("B"),
	}})
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}

	if result.Score != 1 || result.Total != 2 {
		t.Errorf("score = %d/%d, want 1/2", result.Score, result.Total)
	}

	r, ok := answers.records[recordKey(1, 7, 11)]
	if !ok {
		t.Fatal("missing record for unanswered question")
	}
	if string(r.UserAnswer) != "null" {
		t.Errorf("unanswered record stored %q, want null", r.UserAnswer)
	}
	if r.Correct {
		t.Error("unanswered question graded correct")
	}
}

func TestSubmitQuiz_FeedbackFollowsQuestionOrder(t *testing.T) {
	quizzes := twoQuestionQuiz(t)
	svc := NewGradingService(quizzes, newFakeAnswerStore(), &fakeNotifier{})

	result, err := svc.SubmitQuiz(7, 1, QuizSubmission{Answers: map[uint]model.SubmittedAnswer{
		11: multiAnswer("X", "Z"),
		10: singleAnswer("B"),
	}})
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}

	if len(result.Feedback) != 2 {
		t.Fatalf("feedback entries = %d, want 2", len(result.Feedback))
	}
	if result.Feedback[0].QuestionID != 10 || result.Feedback[1].QuestionID != 11 {
		t.Errorf("feedback order = [%d, %d], want [10, 11]",
			result.Feedback[0].QuestionID, result.Feedback[1].QuestionID)
	}
}

func TestSubmitQuiz_QuizNotFound(t *testing.T) {
	svc := NewGradingService(newFakeQuizStore(), newFakeAnswerStore(), &fakeNotifier{})

	_, err := svc.SubmitQuiz(7, 99, QuizSubmission{})
	if !errors.Is(err, util.ErrQuizNotFound) {
		t.Errorf("err = %v, want ErrQuizNotFound", err)
	}
}

func TestSubmitQuiz_EmptyQuizNotGradable(t *testing.T) {
	quizzes := newFakeQuizStore()
	quizzes.quizzes[2] = &model.Quiz{BaseModel: model.BaseModel{ID: 2}, Title: "空测验"}
	svc := NewGradingService(quizzes, newFakeAnswerStore(), &fakeNotifier{})

	_, err := svc.SubmitQuiz(7, 2, QuizSubmission{})
	if !errors.Is(err, util.ErrQuizNotFound) {
		t.Errorf("err = %v, want ErrQuizNotFound", err)
	}
}

func TestSubmitQuiz_ReplayIsReadOnly(t *testing.T) {
	quizzes := twoQuestionQuiz(t)
	answers := newFakeAnswerStore()
	reward := &fakeNotifier{}
	svc := NewGradingService(quizzes, answers, reward)

	first, err := svc.SubmitQuiz(7, 1, QuizSubmission{Answers: map[uint]model.SubmittedAnswer{
		10: singleAnswer("A"),
		11: multiAnswer("X"),
	}})
	if err != nil {
		t.Fatalf("first SubmitQuiz: %v", err)
	}
	if first.Score != 0 {
		t.Fatalf("first score = %d, want 0", first.Score)
	}

	firstRecords := make(map[string]model.AnswerRecord, len(answers.records))
	for k, v := range answers.records {
		firstRecords[k] = v
	}

	// 第二次用全对答案提交：返回新判分，但不得产生任何写入或奖励
	second, err := svc.SubmitQuiz(7, 1, QuizSubmission{Answers: map[uint]model.SubmittedAnswer{
		10: singleAnswer("B"),
		11: multiAnswer("Z", "X"),
	}})
	if err != nil {
		t.Fatalf("second SubmitQuiz: %v", err)
	}

	if second.Score != 2 {
		t.Errorf("replay score = %d, want 2", second.Score)
	}
	if second.Rewarded {
		t.Error("replay must not be rewarded")
	}
	if reward.calls != 1 {
		t.Errorf("reward calls = %d, want 1", reward.calls)
	}
	if len(answers.records) != len(firstRecords) {
		t.Fatalf("records changed on replay: %d -> %d", len(firstRecords), len(answers.records))
	}
	for k, v := range firstRecords {
		got := answers.records[k]
		if string(got.UserAnswer) != string(v.UserAnswer) || got.Correct != v.Correct {
			t.Errorf("record %s mutated on replay", k)
		}
	}
}

func TestSubmitQuiz_ConcurrentFirstSubmissions(t *testing.T) {
	quizzes := twoQuestionQuiz(t)
	answers := newFakeAnswerStore()
	reward := &fakeNotifier{}
	svc := NewGradingService(quizzes, answers, reward)

	const n = 16
	var wg sync.WaitGroup
	errCh := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitQuiz(7, 1, QuizSubmission{Answers: map[uint]model.SubmittedAnswer{
				10: singleAnswer("B"),
				11: multiAnswer("X", "Z"),
			}})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Errorf("concurrent SubmitQuiz: %v", err)
		}
	}

	if len(answers.records) != 2 {
		t.Errorf("persisted records = %d, want exactly one batch of 2", len(answers.records))
	}
	if reward.calls != 1 {
		t.Errorf("reward calls = %d, want exactly 1", reward.calls)
	}
}

func TestSubmitQuiz_InsertFailureIsRetryable(t *testing.T) {
	quizzes := twoQuestionQuiz(t)
	answers := newFakeAnswerStore()
	answers.insertErr = errors.New("connection lost")
	reward := &fakeNotifier{}
	svc := NewGradingService(quizzes, answers, reward)

	_, err := svc.SubmitQuiz(7, 1, QuizSubmission{Answers: map[uint]model.SubmittedAnswer{
		10: singleAnswer("B"),
	}})
	if !errors.Is(err, util.ErrSubmissionFailed) {
		t.Errorf("err = %v, want ErrSubmissionFailed", err)
	}
	if reward.calls != 0 {
		t.Errorf("reward calls = %d, want 0 on failed persistence", reward.calls)
	}
	if len(answers.records) != 0 {
		t.Errorf("records = %d, want 0 after failed batch", len(answers.records))
	}
}

func TestSubmitQuiz_CorruptSolutionGradedIncorrect(t *testing.T) {
	quizzes := newFakeQuizStore()
	quizzes.quizzes[1] = &model.Quiz{BaseModel: model.BaseModel{ID: 1}}
	quizzes.questions[1] = []model.QuizQuestion{
		{
			BaseModel:    model.BaseModel{ID: 10},
			QuizID:       1,
			QuestionText: "corrupt",
			QuestionType: model.SingleChoice,
			Options:      json.RawMessage(`["A","B"]`),
			Solution:     json.RawMessage(`{bad`),
		},
	}
	svc := NewGradingService(quizzes, newFakeAnswerStore(), &fakeNotifier{})

	result, err := svc.SubmitQuiz(7, 1, QuizSubmission{Answers: map[uint]model.SubmittedAnswer{
		10: singleAnswer("A"),
	}})
	if err != nil {
		t.Fatalf("SubmitQuiz: %v", err)
	}
	if result.Score != 0 || result.Total != 1 {
		t.Errorf("score = %d/%d, want 0/1", result.Score, result.Total)
	}
}
