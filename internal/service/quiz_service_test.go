package service

import (
	"testing"

	"quiz_platform_backend/internal/model"
)

func TestBuildQuestionValidation(t *testing.T) {
	svc := &QuizService{}

	tests := []struct {
		name    string
		req     QuestionReq
		wantSol string
		wantErr bool
	}{
		{
			name: "single choice ok",
			req: QuestionReq{
				QuestionText: "Q",
				QuestionType: "single_choice",
				Options:      []string{"A", "B", "C"},
				Solution:     []string{"B"},
			},
			wantSol: `"B"`,
		},
		{
			name: "multiple choice ok",
			req: QuestionReq{
				QuestionText: "Q",
				QuestionType: "multiple_choice",
				Options:      []string{"X", "Y", "Z"},
				Solution:     []string{"X", "Z"},
			},
			wantSol: `["X","Z"]`,
		},
		{
			name: "unknown type",
			req: QuestionReq{
				QuestionText: "Q",
				QuestionType: "essay",
				Options:      []string{"A", "B"},
				Solution:     []string{"A"},
			},
			wantErr: true,
		},
		{
			name: "too few options",
			req: QuestionReq{
				QuestionText: "Q",
				QuestionType: "single_choice",
				Options:      []string{"A"},
				Solution:     []string{"A"},
			},
			wantErr: true,
		},
		{
			name: "solution outside options",
			req: QuestionReq{
				QuestionText: "Q",
				QuestionType: "single_choice",
				Options:      []string{"A", "B"},
				Solution:     []string{"C"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qt, _, solution, err := svc.buildQuestion(tt.req)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildQuestion: %v", err)
			}
			if qt != model.QuestionType(tt.req.QuestionType) {
				t.Errorf("type = %s, want %s", qt, tt.req.QuestionType)
			}
			if string(solution) != tt.wantSol {
				t.Errorf("solution = %s, want %s", solution, tt.wantSol)
			}
		})
	}
}
