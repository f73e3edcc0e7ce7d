package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"profilegate/internal/profile/metrics"
	"profilegate/internal/profile/models"
	"profilegate/internal/profile/pipeline/mocks"
)

const (
	idImage     = "aWQtaW1hZ2U="
	salaryImage = "c2FsYXJ5LWltYWdl"
)

type PipelineSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	extractor *mocks.MockExtractor
	metrics   *metrics.Metrics
	pipeline  *Pipeline
	ctx       context.Context
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.reset()
}

func (s *PipelineSuite) SetupSubTest() {
	s.reset()
}

func (s *PipelineSuite) reset() {
	s.ctrl = gomock.NewController(s.T())
	s.extractor = mocks.NewMockExtractor(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.pipeline = New(s.extractor, WithMetrics(s.metrics))
	s.ctx = context.Background()
}

func (s *PipelineSuite) createSubmission() Submission {
	return Submission{
		Mode:        models.ModeCreate,
		Claimed:     johnDoe(),
		IDImage:     idImage,
		SalaryImage: salaryImage,
	}
}

func (s *PipelineSuite) verifySubmission(baseline models.StoredProfile) Submission {
	sub := s.createSubmission()
	sub.Mode = models.ModeVerify
	sub.Baseline = &baseline
	return sub
}

func storedJohnDoe() models.StoredProfile {
	return models.StoredProfile{
		ID:          7,
		LastName:    "Doe",
		FirstName:   "John",
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Salary:      4990.0,
	}
}

func (s *PipelineSuite) requireRejected(outcome *models.Outcome, kind models.RejectionKind, detail string) {
	s.Require().NotNil(outcome)
	s.Require().False(outcome.IsAccepted())
	s.Require().NotNil(outcome.Rejection)
	s.Equal(kind, outcome.Rejection.Kind)
	s.Equal(detail, outcome.Rejection.Detail)
	s.Equal(models.PersistedProfile{}, outcome.Persisted)
}

func (s *PipelineSuite) TestCreateScenarios() {
	s.Run("A: matching identity and salary is accepted with the document salary", func() {
		s.extractor.EXPECT().ExtractIdentity(gomock.Any(), idImage).
			Return(models.ExtractedIdentity{LastName: "Doe", FirstName: "John", DateOfBirth: "1990-01-01"}, nil)
		s.extractor.EXPECT().ExtractSalary(gomock.Any(), salaryImage).Return(5000.0, nil)

		outcome, err := s.pipeline.Run(s.ctx, s.createSubmission())
		s.Require().NoError(err)
		s.Require().True(outcome.IsAccepted())
		s.Nil(outcome.Rejection)
		s.Equal("Doe", outcome.Persisted.LastName)
		s.Equal("John", outcome.Persisted.FirstName)
		s.Equal(johnDoe().DateOfBirth, outcome.Persisted.DateOfBirth)
		s.Equal(5000.0, outcome.Persisted.Salary)
	})

	s.Run("B: name mismatch rescued by date of birth", func() {
		s.extractor.EXPECT().ExtractIdentity(gomock.Any(), idImage).
			Return(models.ExtractedIdentity{LastName: "Smith", FirstName: "Jane", DateOfBirth: "1990-01-01"}, nil)
		s.extractor.EXPECT().ExtractSalary(gomock.Any(), salaryImage).Return(5000.0, nil)

		outcome, err := s.pipeline.Run(s.ctx, s.createSubmission())
		s.Require().NoError(err)
		s.True(outcome.IsAccepted())
	})

	s.Run("C: identity mismatch stops before the salary document is read", func() {
		s.extractor.EXPECT().ExtractIdentity(gomock.Any(), idImage).
			Return(models.ExtractedIdentity{LastName: "Smith", FirstName: "John", DateOfBirth: "1985-05-05"}, nil)
		s.extractor.EXPECT().ExtractSalary(gomock.Any(), gomock.Any()).Times(0)

		outcome, err := s.pipeline.Run(s.ctx, s.createSubmission())
		s.Require().NoError(err)
		s.requireRejected(outcome, models.RejectionIdentityMismatch, "ID data mismatch")
	})

	s.Run("D: salary outside tolerance is rejected", func() {
		s.extractor.EXPECT().ExtractIdentity(gomock.Any(), idImage).
			Return(models.ExtractedIdentity{LastName: "Doe", FirstName: "John", DateOfBirth: "1990-01-01"}, nil)
		s.extractor.EXPECT().ExtractSalary(gomock.Any(), salaryImage).Return(1000.0, nil)

		outcome, err := s.pipeline.Run(s.ctx, s.createSubmission())
		s.Require().NoError(err)
		s.requireRejected(outcome, models.RejectionSalaryMismatch, "Salary data mismatch")
	})
}

func (s *PipelineSuite) TestPersistedSalaryComesFromDocument() {
	s.extractor.EXPECT().ExtractIdentity(gomock.Any(), gomock.Any()).
		Return(models.ExtractedIdentity{LastName: "Doe", FirstName: "John"}, nil)
	s.extractor.EXPECT().ExtractSalary(gomock.Any(), gomock.Any()).Return(5049.5, nil)

	outcome, err := s.pipeline.Run(s.ctx, s.createSubmission())
	s.Require().NoError(err)
	s.Require().True(outcome.IsAccepted())
	s.Equal(5049.5, outcome.Persisted.Salary)
}

func (s *PipelineSuite) TestSalaryToleranceBoundary() {
	s.Run("difference of exactly the tolerance is accepted", func() {
		s.extractor.EXPECT().ExtractIdentity(gomock.Any(), gomock.Any()).
			Return(models.ExtractedIdentity{LastName: "Doe", FirstName: "John"}, nil)
		s.extractor.EXPECT().ExtractSalary(gomock.Any(), gomock.Any()).Return(5050.0, nil)

		outcome, err := s.pipeline.Run(s.ctx, s.createSubmission())
		s.Require().NoError(err)
		s.True(outcome.IsAccepted())
	})

	s.Run("difference just above the tolerance is rejected", func() {
		s.extractor.EXPECT().ExtractIdentity(gomock.Any(), gomock.Any()).
			Return(models.ExtractedIdentity{LastName: "Doe", FirstName: "John"}, nil)
		s.extractor.EXPECT().ExtractSalary(gomock.Any(), gomock.Any()).Return(5050.01, nil)

		outcome, err := s.pipeline.Run(s.ctx, s.createSubmission())
		s.Require().NoError(err)
		s.requireRejected(outcome, models.RejectionSalaryMismatch, "Salary data mismatch")
	})
}

func (s *PipelineSuite) TestVerifyMode() {
	s.Run("text mismatch against the baseline never calls the extractor", func() {
		baseline := storedJohnDoe()
		baseline.FirstName = "Jonathan"
		s.extractor.EXPECT().ExtractIdentity(gomock.Any(), gomock.Any()).Times(0)
		s.extractor.EXPECT().ExtractSalary(gomock.Any(), gomock.Any()).Times(0)

		outcome, err := s.pipeline.Run(s.ctx, s.verifySubmission(baseline))
		s.Require().NoError(err)
		s.requireRejected(outcome, models.RejectionTextMismatch, "Text data mismatch")
	})

	s.Run("baseline comparison is case sensitive", func() {
		baseline := storedJohnDoe()
		baseline.LastName = "DOE"

		outcome, err := s.pipeline.Run(s.ctx, s.verifySubmission(baseline))
		s.Require().NoError(err)
		s.requireRejected(outcome, models.RejectionTextMismatch, "Text data mismatch")
	})

	s.Run("matching baseline continues through both documents", func() {
		s.extractor.EXPECT().ExtractIdentity(gomock.Any(), idImage).
			Return(models.ExtractedIdentity{LastName: "doe", FirstName: "john", DateOfBirth: "1990-01-01"}, nil)
		s.extractor.EXPECT().ExtractSalary(gomock.Any(), salaryImage).Return(5010.0, nil)

		outcome, err := s.pipeline.Run(s.ctx, s.verifySubmission(storedJohnDoe()))
		s.Require().NoError(err)
		s.Require().True(outcome.IsAccepted())
		s.Equal(5010.0, outcome.Persisted.Salary)
	})

	s.Run("missing baseline is an invocation error", func() {
		sub := s.createSubmission()
		sub.Mode = models.ModeVerify

		outcome, err := s.pipeline.Run(s.ctx, sub)
		s.Require().ErrorIs(err, ErrBaselineRequired)
		s.Nil(outcome)
	})
}

func (s *PipelineSuite) TestExtractionFailures() {
	outage := errors.New("connection refused")

	s.Run("identity extraction failure", func() {
		s.extractor.EXPECT().ExtractIdentity(gomock.Any(), gomock.Any()).Return(models.ExtractedIdentity{}, outage)
		s.extractor.EXPECT().ExtractSalary(gomock.Any(), gomock.Any()).Times(0)

		outcome, err := s.pipeline.Run(s.ctx, s.createSubmission())
		s.Require().NoError(err)
		s.requireRejected(outcome, models.RejectionExtractionFailure, "OCR failed for ID")
		s.ErrorIs(outcome.Rejection, outage)
	})

	s.Run("salary extraction failure", func() {
		s.extractor.EXPECT().ExtractIdentity(gomock.Any(), gomock.Any()).
			Return(models.ExtractedIdentity{LastName: "Doe", FirstName: "John"}, nil)
		s.extractor.EXPECT().ExtractSalary(gomock.Any(), gomock.Any()).Return(0.0, outage)

		outcome, err := s.pipeline.Run(s.ctx, s.createSubmission())
		s.Require().NoError(err)
		s.requireRejected(outcome, models.RejectionExtractionFailure, "OCR failed for Salary Slip")
		s.ErrorIs(outcome.Rejection, outage)
	})

	s.Run("unreadable identity degrades to a mismatch rather than a failure", func() {
		s.extractor.EXPECT().ExtractIdentity(gomock.Any(), gomock.Any()).Return(models.ExtractedIdentity{}, nil)

		outcome, err := s.pipeline.Run(s.ctx, s.createSubmission())
		s.Require().NoError(err)
		s.requireRejected(outcome, models.RejectionIdentityMismatch, "ID data mismatch")
	})
}

func (s *PipelineSuite) TestUnknownMode() {
	sub := s.createSubmission()
	sub.Mode = models.Mode("audit")

	outcome, err := s.pipeline.Run(s.ctx, sub)
	s.Require().ErrorIs(err, ErrUnknownMode)
	s.Nil(outcome)
}

func (s *PipelineSuite) TestOutcomeMetrics() {
	s.extractor.EXPECT().ExtractIdentity(gomock.Any(), gomock.Any()).
		Return(models.ExtractedIdentity{LastName: "Doe", FirstName: "John"}, nil).Times(2)
	s.extractor.EXPECT().ExtractSalary(gomock.Any(), gomock.Any()).Return(5000.0, nil)
	s.extractor.EXPECT().ExtractSalary(gomock.Any(), gomock.Any()).Return(9000.0, nil)

	_, err := s.pipeline.Run(s.ctx, s.createSubmission())
	s.Require().NoError(err)
	_, err = s.pipeline.Run(s.ctx, s.createSubmission())
	s.Require().NoError(err)

	s.Equal(1.0, promtest.ToFloat64(s.metrics.Outcomes.WithLabelValues("create", "accepted", "")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Outcomes.WithLabelValues("create", "rejected", "salary_mismatch")))
}

func TestPipelineWithoutMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	extractor := mocks.NewMockExtractor(ctrl)
	extractor.EXPECT().ExtractIdentity(gomock.Any(), gomock.Any()).Return(models.ExtractedIdentity{}, errors.New("boom"))

	outcome, err := New(extractor).Run(context.Background(), Submission{
		Mode:    models.ModeCreate,
		Claimed: johnDoe(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.IsAccepted() {
		t.Fatal("expected rejection")
	}
}
