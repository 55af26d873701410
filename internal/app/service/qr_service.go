package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/feliven/qrpulse/internal/app/model"
	"github.com/feliven/qrpulse/internal/app/repository"
)

var (
	// ErrCodeTaken signals that the requested short code already exists.
	ErrCodeTaken = errors.New("code already exists")
	// ErrInvalidCode signals a code outside ^[a-zA-Z0-9-_]{3,100}$.
	ErrInvalidCode = errors.New("invalid code")
	// ErrInvalidTargetURL signals an empty or oversized target URL.
	ErrInvalidTargetURL = errors.New("invalid target url")
)

var codePattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]{3,100}$`)

const maxTargetURLLen = 2000

// QRCodeWithCount pairs a QR code with its lifetime scan total for list
// and detail responses.
type QRCodeWithCount struct {
	model.QRCode
	ScanCount int64
}

// QRService defines behaviour-level operations on QR codes. Every
// operation except Create is ownership-scoped: a QR code that exists but
// belongs to another user behaves exactly like a missing one.
type QRService interface {
	Create(ctx context.Context, userID int64, code, targetURL string) (*model.QRCode, error)
	List(ctx context.Context, userID int64) ([]QRCodeWithCount, error)
	Get(ctx context.Context, userID, id int64) (*QRCodeWithCount, error)
	Update(ctx context.Context, userID, id int64, input UpdateQRInput) (*QRCodeWithCount, error)
	Delete(ctx context.Context, userID, id int64) error
}

// UpdateQRInput captures fields that can be changed on an existing QR code.
type UpdateQRInput struct {
	TargetURL *string
	IsActive  *bool
}

type qrService struct {
	repo  repository.QRCodeRepository
	scans repository.ScanEventRepository
}

// NewQRService returns a service implementation backed by the given
// repositories.
func NewQRService(repo repository.QRCodeRepository, scans repository.ScanEventRepository) QRService {
	return &qrService{repo: repo, scans: scans}
}

func (s *qrService) Create(ctx context.Context, userID int64, code, targetURL string) (*model.QRCode, error) {
	if !codePattern.MatchString(code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	if targetURL == "" || len(targetURL) > maxTargetURLLen {
		return nil, ErrInvalidTargetURL
	}

	if _, err := s.repo.GetByCode(ctx, code); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrCodeTaken, code)
	} else if !errors.Is(err, repository.ErrQRCodeNotFound) {
		return nil, fmt.Errorf("check code: %w", err)
	}

	qr := &model.QRCode{
		Code:      code,
		TargetURL: targetURL,
		CreatedBy: userID,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, qr); err != nil {
		return nil, fmt.Errorf("create qr code: %w", err)
	}
	return qr, nil
}

func (s *qrService) List(ctx context.Context, userID int64) ([]QRCodeWithCount, error) {
	codes, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list qr codes: %w", err)
	}
	counts, err := s.scans.CountsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count scans: %w", err)
	}

	out := make([]QRCodeWithCount, len(codes))
	for i, qr := range codes {
		out[i] = QRCodeWithCount{QRCode: qr, ScanCount: counts[qr.ID]}
	}
	return out, nil
}

func (s *qrService) Get(ctx context.Context, userID, id int64) (*QRCodeWithCount, error) {
	qr, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get qr code: %w", err)
	}
	count, err := s.scans.CountForQRCode(ctx, qr.ID)
	if err != nil {
		return nil, fmt.Errorf("count scans: %w", err)
	}
	return &QRCodeWithCount{QRCode: *qr, ScanCount: count}, nil
}

func (s *qrService) Update(ctx context.Context, userID, id int64, input UpdateQRInput) (*QRCodeWithCount, error) {
	qr, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("load qr code: %w", err)
	}

	if input.TargetURL != nil {
		if *input.TargetURL == "" || len(*input.TargetURL) > maxTargetURLLen {
			return nil, ErrInvalidTargetURL
		}
		qr.TargetURL = *input.TargetURL
	}
	if input.IsActive != nil {
		qr.IsActive = *input.IsActive
	}

	if err := s.repo.Update(ctx, qr); err != nil {
		return nil, fmt.Errorf("update qr code: %w", err)
	}
	count, err := s.scans.CountForQRCode(ctx, qr.ID)
	if err != nil {
		return nil, fmt.Errorf("count scans: %w", err)
	}
	return &QRCodeWithCount{QRCode: *qr, ScanCount: count}, nil
}

func (s *qrService) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.repo.GetForUser(ctx, id, userID); err != nil {
		return fmt.Errorf("load qr code: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete qr code: %w", err)
	}
	return nil
}
