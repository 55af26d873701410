package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/feliven/qrpulse/internal/app/model"
	"github.com/feliven/qrpulse/internal/app/repository"
)

type mockQRCodeRepository struct {
	createFn      func(ctx context.Context, qr *model.QRCode) error
	getByCodeFn   func(ctx context.Context, code string) (*model.QRCode, error)
	getForUserFn  func(ctx context.Context, id, userID int64) (*model.QRCode, error)
	listForUserFn func(ctx context.Context, userID int64) ([]model.QRCode, error)
	listCodesFn   func(ctx context.Context) ([]string, error)
	updateFn      func(ctx context.Context, qr *model.QRCode) error
	deleteFn      func(ctx context.Context, id int64) error
}

func (m *mockQRCodeRepository) Create(ctx context.Context, qr *model.QRCode) error {
	if m.createFn != nil {
		return m.createFn(ctx, qr)
	}
	return nil
}

func (m *mockQRCodeRepository) GetByCode(ctx context.Context, code string) (*model.QRCode, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code)
	}
	return nil, repository.ErrQRCodeNotFound
}

func (m *mockQRCodeRepository) GetForUser(ctx context.Context, id, userID int64) (*model.QRCode, error) {
	if m.getForUserFn != nil {
		return m.getForUserFn(ctx, id, userID)
	}
	return nil, repository.ErrQRCodeNotFound
}

func (m *mockQRCodeRepository) ListForUser(ctx context.Context, userID int64) ([]model.QRCode, error) {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockQRCodeRepository) ListCodes(ctx context.Context) ([]string, error) {
	if m.listCodesFn != nil {
		return m.listCodesFn(ctx)
	}
	return nil, nil
}

func (m *mockQRCodeRepository) Update(ctx context.Context, qr *model.QRCode) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, qr)
	}
	return nil
}

func (m *mockQRCodeRepository) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockScanEventRepository struct {
	createFn        func(ctx context.Context, event *model.ScanEvent) error
	backfillGeoFn   func(ctx context.Context, id int64, country, city, region *string) error
	countForQRFn    func(ctx context.Context, qrCodeID int64) (int64, error)
	countsForUserFn func(ctx context.Context, userID int64) (map[int64]int64, error)
}

func (m *mockScanEventRepository) Create(ctx context.Context, event *model.ScanEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockScanEventRepository) BackfillGeo(ctx context.Context, id int64, country, city, region *string) error {
	if m.backfillGeoFn != nil {
		return m.backfillGeoFn(ctx, id, country, city, region)
	}
	return nil
}

func (m *mockScanEventRepository) CountForQRCode(ctx context.Context, qrCodeID int64) (int64, error) {
	if m.countForQRFn != nil {
		return m.countForQRFn(ctx, qrCodeID)
	}
	return 0, nil
}

func (m *mockScanEventRepository) CountsForUser(ctx context.Context, userID int64) (map[int64]int64, error) {
	if m.countsForUserFn != nil {
		return m.countsForUserFn(ctx, userID)
	}
	return map[int64]int64{}, nil
}

func TestQRService_Create(t *testing.T) {
	repo := &mockQRCodeRepository{
		createFn: func(ctx context.Context, qr *model.QRCode) error {
			if qr.Code != "spring-promo" {
				t.Fatalf("unexpected code: %q", qr.Code)
			}
			if !qr.IsActive {
				t.Fatal("new codes should start active")
			}
			qr.ID = 42
			return nil
		},
	}
	svc := NewQRService(repo, &mockScanEventRepository{})

	qr, err := svc.Create(context.Background(), 7, "spring-promo", "https://example.com/landing")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if qr.ID != 42 || qr.CreatedBy != 7 {
		t.Fatalf("unexpected qr: %+v", qr)
	}
}

func TestQRService_Create_InvalidCode(t *testing.T) {
	svc := NewQRService(&mockQRCodeRepository{}, &mockScanEventRepository{})

	for _, code := range []string{"", "ab", "has space", "emoji☂", strings.Repeat("x", 101)} {
		_, err := svc.Create(context.Background(), 7, code, "https://example.com")
		if !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("code %q: expected ErrInvalidCode, got %v", code, err)
		}
	}
}

func TestQRService_Create_InvalidTargetURL(t *testing.T) {
	svc := NewQRService(&mockQRCodeRepository{}, &mockScanEventRepository{})

	for _, target := range []string{"", strings.Repeat("a", 2001)} {
		_, err := svc.Create(context.Background(), 7, "promo", target)
		if !errors.Is(err, ErrInvalidTargetURL) {
			t.Fatalf("expected ErrInvalidTargetURL, got %v", err)
		}
	}
}

func TestQRService_Create_CodeTaken(t *testing.T) {
	repo := &mockQRCodeRepository{
		getByCodeFn: func(ctx context.Context, code string) (*model.QRCode, error) {
			return &model.QRCode{ID: 1, Code: code}, nil
		},
	}
	svc := NewQRService(repo, &mockScanEventRepository{})

	_, err := svc.Create(context.Background(), 7, "promo", "https://example.com")
	if !errors.Is(err, ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}
}

func TestQRService_List(t *testing.T) {
	repo := &mockQRCodeRepository{
		listForUserFn: func(ctx context.Context, userID int64) ([]model.QRCode, error) {
			return []model.QRCode{{ID: 1, Code: "a"}, {ID: 2, Code: "b"}}, nil
		},
	}
	scans := &mockScanEventRepository{
		countsForUserFn: func(ctx context.Context, userID int64) (map[int64]int64, error) {
			return map[int64]int64{1: 10}, nil
		},
	}
	svc := NewQRService(repo, scans)

	list, err := svc.List(context.Background(), 7)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(list))
	}
	if list[0].ScanCount != 10 || list[1].ScanCount != 0 {
		t.Fatalf("unexpected counts: %d, %d", list[0].ScanCount, list[1].ScanCount)
	}
}

func TestQRService_Get_NotOwned(t *testing.T) {
	repo := &mockQRCodeRepository{
		getForUserFn: func(ctx context.Context, id, userID int64) (*model.QRCode, error) {
			return nil, repository.ErrQRCodeNotFound
		},
	}
	svc := NewQRService(repo, &mockScanEventRepository{})

	_, err := svc.Get(context.Background(), 7, 1)
	if !errors.Is(err, repository.ErrQRCodeNotFound) {
		t.Fatalf("expected ErrQRCodeNotFound, got %v", err)
	}
}

func TestQRService_Update(t *testing.T) {
	repo := &mockQRCodeRepository{
		getForUserFn: func(ctx context.Context, id, userID int64) (*model.QRCode, error) {
			return &model.QRCode{ID: id, Code: "promo", TargetURL: "https://old.example.com", IsActive: true}, nil
		},
		updateFn: func(ctx context.Context, qr *model.QRCode) error {
			if qr.TargetURL != "https://new.example.com" {
				t.Fatalf("expected updated target, got %s", qr.TargetURL)
			}
			if qr.IsActive {
				t.Fatal("expected IsActive false")
			}
			return nil
		},
	}
	svc := NewQRService(repo, &mockScanEventRepository{})

	target := "https://new.example.com"
	active := false
	qr, err := svc.Update(context.Background(), 7, 1, UpdateQRInput{TargetURL: &target, IsActive: &active})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if qr.TargetURL != target {
		t.Fatalf("unexpected target: %s", qr.TargetURL)
	}
}

func TestQRService_Delete(t *testing.T) {
	deleted := false
	repo := &mockQRCodeRepository{
		getForUserFn: func(ctx context.Context, id, userID int64) (*model.QRCode, error) {
			return &model.QRCode{ID: id}, nil
		},
		deleteFn: func(ctx context.Context, id int64) error {
			deleted = true
			return nil
		},
	}
	svc := NewQRService(repo, &mockScanEventRepository{})

	if err := svc.Delete(context.Background(), 7, 1); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to reach the repository")
	}
}

func TestQRService_Delete_NotOwned(t *testing.T) {
	repo := &mockQRCodeRepository{
		getForUserFn: func(ctx context.Context, id, userID int64) (*model.QRCode, error) {
			return nil, repository.ErrQRCodeNotFound
		},
		deleteFn: func(ctx context.Context, id int64) error {
			t.Fatal("delete must not run for foreign codes")
			return nil
		},
	}
	svc := NewQRService(repo, &mockScanEventRepository{})

	err := svc.Delete(context.Background(), 7, 1)
	if !errors.Is(err, repository.ErrQRCodeNotFound) {
		t.Fatalf("expected ErrQRCodeNotFound, got %v", err)
	}
}
