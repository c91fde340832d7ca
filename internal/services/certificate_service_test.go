package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/models"
	"github.com/ntptrace/trace-backend/internal/registry"
	"github.com/ntptrace/trace-backend/internal/utils"
)

type recordingArchiver struct {
	mu       sync.Mutex
	archived []string
	err      error
}

func (a *recordingArchiver) Archive(_ context.Context, cert *models.Certificate) (*ArchiveResult, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, cert.ID)
	return &ArchiveResult{Bucket: "test-bucket", Key: ArchiveKey(cert)}, nil
}

type CertificateServiceTestSuite struct {
	suite.Suite
	registry *registry.MemoryRegistry
	ledger   *ledger.StaticClient
	issuer   *CertificateIssuer
	archive  *recordingArchiver
	service  *CertificateService
}

func (s *CertificateServiceTestSuite) SetupTest() {
	s.registry = registry.NewMemoryRegistry()
	s.ledger = ledger.NewStaticClient()
	s.issuer = NewCertificateIssuer()
	s.archive = &recordingArchiver{}
	s.service = NewCertificateService(s.issuer, s.registry, s.ledger, s.archive, testConfig())

	for i, b := range []string{"01", "02", "03", "04", "05", "06", "07", "08"} {
		s.ledger.Anchor(testTxHash(b), models.BlockchainData{BlockHash: testTxHash("bb"), GasUsed: 50000, GasPrice: "2000000000", Nonce: uint64(i)}, uint64(100+i))
	}
}

func actor(principal ledger.Principal, role models.Role) models.AuthorizationState {
	return models.AuthorizationState{Principal: principal.String(), Authorized: true, Role: role, Generation: 1}
}

func issueRequest(stage models.Stage, tx string) *IssueCertificateRequest {
	return &IssueCertificateRequest{
		Product:         models.ProductSnapshot{ProductID: "PRD-0001", ProductName: "Single-origin coffee"},
		Stage:           stage,
		TransactionHash: tx,
	}
}

func (s *CertificateServiceTestSuite) TestIssueRecordsStage() {
	resp, err := s.service.IssueForStage(context.Background(), actor(alice, models.RoleProducer), issueRequest(models.StageManufactured, testTxHash("01")))
	s.Require().NoError(err)

	cert := resp.Certificate
	s.Regexp(certIDPattern, cert.ID)
	s.Equal(models.StageManufactured, cert.Status)
	s.Equal(uint64(100), cert.BlockNumber)
	s.Equal(uint64(50000), cert.Anchor.GasUsed)
	s.Equal(alice.String(), cert.Participants.Producer)

	s.Equal("https://trace.example/verify?certificate_id="+cert.ID+"&transaction_hash="+testTxHash("01"), resp.VerificationURL)
	s.Equal("https://sepolia.etherscan.io/tx/"+testTxHash("01"), resp.ExplorerURL)
	s.Require().NotNil(resp.Archive)
	s.Equal([]string{cert.ID}, s.archive.archived)

	stored, err := s.registry.FindByID(context.Background(), cert.ID)
	s.Require().NoError(err)
	s.Equal(cert.TransactionHash, stored.TransactionHash)
}

func (s *CertificateServiceTestSuite) TestIssueKeepsNamedParticipants() {
	req := issueRequest(models.StagePickedUp, testTxHash("01"))
	req.Product.Participants.Distributor = bob.String()

	resp, err := s.service.IssueForStage(context.Background(), actor(alice, models.RoleDistributor), req)
	s.Require().NoError(err)
	s.Equal(bob.String(), resp.Certificate.Participants.Distributor)
}

func (s *CertificateServiceTestSuite) TestIssueRequiresOwningRole() {
	_, err := s.service.IssueForStage(context.Background(), actor(alice, models.RoleDistributor), issueRequest(models.StageManufactured, testTxHash("01")))
	s.ErrorIs(err, ErrStageForbidden)

	_, err = s.service.IssueForStage(context.Background(), models.Unauthenticated(alice.String()), issueRequest(models.StageManufactured, testTxHash("01")))
	s.ErrorIs(err, ErrStageForbidden)

	// The sale is recorded by the retailer, never by a consumer.
	_, err = s.service.IssueForStage(context.Background(), actor(alice, models.RoleConsumer), issueRequest(models.StageSold, testTxHash("01")))
	s.ErrorIs(err, ErrStageForbidden)

	s.Empty(s.archive.archived)
}

func (s *CertificateServiceTestSuite) TestIssueRejectsRegression() {
	_, err := s.service.IssueForStage(context.Background(), actor(bob, models.RoleDistributor), issueRequest(models.StageInTransit, testTxHash("01")))
	s.Require().NoError(err)

	_, err = s.service.IssueForStage(context.Background(), actor(alice, models.RoleProducer), issueRequest(models.StageReadyForPickup, testTxHash("02")))
	s.ErrorIs(err, ErrStageRegression)

	var regression *StageRegressionError
	s.Require().True(errors.As(err, &regression))
	s.Equal(models.StageInTransit, regression.Recorded)
	s.Equal(models.StageReadyForPickup, regression.Requested)
}

func (s *CertificateServiceTestSuite) TestIssueRejectsAfterTerminalStage() {
	_, err := s.service.IssueForStage(context.Background(), actor(bob, models.RoleRetailer), issueRequest(models.StageSold, testTxHash("01")))
	s.Require().NoError(err)

	_, err = s.service.IssueForStage(context.Background(), actor(bob, models.RoleRetailer), issueRequest(models.StageSold, testTxHash("02")))
	s.ErrorIs(err, ErrProductTerminal)
}

func (s *CertificateServiceTestSuite) TestConcurrentSalesRecordOnce() {
	s.ledger.SetAutoAnchor(true)

	const workers = 20
	var accepted, terminal atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := issueRequest(models.StageSold, fmt.Sprintf("0x%064x", 0x1000+i))
			req.Product.ProductID = "P-RACE"
			<-start

			_, err := s.service.IssueForStage(context.Background(), actor(bob, models.RoleRetailer), req)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ErrProductTerminal):
				terminal.Add(1)
			default:
				s.Fail("unexpected error", err.Error())
			}
		}(i)
	}
	close(start)
	wg.Wait()

	s.Equal(int32(1), accepted.Load())
	s.Equal(int32(workers-1), terminal.Load())

	_, total, err := s.registry.History(context.Background(), "P-RACE", 0, workers)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
}

// admissionLog records, in commit order, every stage the registry admitted
// together with the stage it followed.
type admissionLog struct {
	*registry.MemoryRegistry
	mu    sync.Mutex
	pairs [][2]models.Stage
}

func (r *admissionLog) Append(ctx context.Context, cert *models.Certificate, admit registry.Admission) error {
	return r.MemoryRegistry.Append(ctx, cert, func(latest *models.Certificate) error {
		if err := admit(latest); err != nil {
			return err
		}
		prev := cert.Status
		if latest != nil {
			prev = latest.Status
		}
		r.mu.Lock()
		r.pairs = append(r.pairs, [2]models.Stage{prev, cert.Status})
		r.mu.Unlock()
		return nil
	})
}

func (s *CertificateServiceTestSuite) TestConcurrentStagesNeverRegress() {
	s.ledger.SetAutoAnchor(true)
	log := &admissionLog{MemoryRegistry: s.registry}
	service := NewCertificateService(s.issuer, log, s.ledger, nil, testConfig())

	stages := []models.Stage{models.StageInTransit, models.StagePickedUp, models.StageInTransit, models.StagePickedUp}
	var wg sync.WaitGroup
	start := make(chan struct{})

	for round := 0; round < 10; round++ {
		for i, stage := range stages {
			wg.Add(1)
			go func(tx string, stage models.Stage) {
				defer wg.Done()
				req := issueRequest(stage, tx)
				req.Product.ProductID = "P-ORDER"
				<-start

				_, err := service.IssueForStage(context.Background(), actor(bob, models.RoleDistributor), req)
				if err != nil {
					s.ErrorIs(err, ErrStageRegression)
				}
			}(fmt.Sprintf("0x%064x", 0x2000+round*len(stages)+i), stage)
		}
	}
	close(start)
	wg.Wait()

	s.Require().NotEmpty(log.pairs)
	for _, p := range log.pairs {
		s.GreaterOrEqual(p[1], p[0])
	}

	_, total, err := s.registry.History(context.Background(), "P-ORDER", 0, 100)
	s.Require().NoError(err)
	s.Equal(int64(len(log.pairs)), total)
}

func (s *CertificateServiceTestSuite) TestIssueRequiresMinedTransaction() {
	_, err := s.service.IssueForStage(context.Background(), actor(alice, models.RoleProducer), issueRequest(models.StageManufactured, testTxHash("ee")))
	s.ErrorIs(err, ErrUnknownTransaction)
}

func (s *CertificateServiceTestSuite) TestIssueRejectsMalformedRequest() {
	_, err := s.service.IssueForStage(context.Background(), actor(alice, models.RoleProducer), issueRequest(models.StageManufactured, "0x1234"))
	s.Error(err)

	req := issueRequest(models.StageManufactured, testTxHash("01"))
	req.Product.ProductName = ""
	_, err = s.service.IssueForStage(context.Background(), actor(alice, models.RoleProducer), req)
	s.Error(err)
}

func (s *CertificateServiceTestSuite) TestIssueRejectsReusedTransaction() {
	_, err := s.service.IssueForStage(context.Background(), actor(alice, models.RoleProducer), issueRequest(models.StageManufactured, testTxHash("01")))
	s.Require().NoError(err)

	_, err = s.service.IssueForStage(context.Background(), actor(alice, models.RoleProducer), issueRequest(models.StageReadyForPickup, testTxHash("01")))
	s.ErrorIs(err, registry.ErrDuplicate)
}

func (s *CertificateServiceTestSuite) TestIssueRedrawsTakenID() {
	s.issuer.now = func() time.Time { return time.UnixMilli(1700000000000) }
	s.issuer.suffix = sequence("AB12CD", "ZZ9999")

	taken := models.Certificate{CertificateRecord: models.CertificateRecord{
		ID:              soldCertID,
		ProductID:       "PRD-0999",
		ProductName:     "Other",
		TransactionHash: testTxHash("aa"),
		Timestamp:       time.UnixMilli(1700000000000),
	}}
	s.Require().NoError(s.registry.Save(context.Background(), &taken))

	resp, err := s.service.IssueForStage(context.Background(), actor(alice, models.RoleProducer), issueRequest(models.StageManufactured, testTxHash("01")))
	s.Require().NoError(err)
	s.Equal("CERT-1700000000000-ZZ9999", resp.Certificate.ID)
}

func (s *CertificateServiceTestSuite) TestArchiveFailureDoesNotFailIssue() {
	s.archive.err = errors.New("s3 down")

	resp, err := s.service.IssueForStage(context.Background(), actor(alice, models.RoleProducer), issueRequest(models.StageManufactured, testTxHash("01")))
	s.Require().NoError(err)
	s.Nil(resp.Archive)

	exists, err := s.registry.Exists(context.Background(), resp.Certificate.ID)
	s.Require().NoError(err)
	s.True(exists)
}

func (s *CertificateServiceTestSuite) TestHistory() {
	steps := []struct {
		who   ledger.Principal
		role  models.Role
		stage models.Stage
		tx    string
	}{
		{alice, models.RoleProducer, models.StageManufactured, testTxHash("01")},
		{alice, models.RoleProducer, models.StageReadyForPickup, testTxHash("02")},
		{bob, models.RoleDistributor, models.StagePickedUp, testTxHash("03")},
	}
	for _, st := range steps {
		_, err := s.service.IssueForStage(context.Background(), actor(st.who, st.role), issueRequest(st.stage, st.tx))
		s.Require().NoError(err)
	}

	page, total, err := s.service.History(context.Background(), "PRD-0001", utils.PaginationParams{Page: 1, Limit: 2})
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Require().Len(page, 2)
	s.Equal(models.StageManufactured, page[0].Status)
	s.Equal(models.StageReadyForPickup, page[1].Status)

	page, _, err = s.service.History(context.Background(), "PRD-0001", utils.PaginationParams{Page: 2, Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal(models.StagePickedUp, page[0].Status)
}

func TestCertificateServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CertificateServiceTestSuite))
}
