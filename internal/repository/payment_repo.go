package repository

import (
	"encoding/json"
	"time"

	"payway/internal/domain"
	"payway/internal/models"
	"payway/pkg/payment"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(p *models.PaymentRecord) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByMD5(md5 string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := r.db.Where("md5 = ?", md5).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkOutcome moves a PENDING record to its terminal state. A payment confirmed
// after the deadline also overwrites EXPIRED; PAID rows and ids never recorded
// are left untouched.
func (r *PaymentRepository) MarkOutcome(md5, status string, tx *payment.Transaction, at time.Time) error {
	updates := map[string]interface{}{"status": status}
	if tx != nil {
		data, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		updates["payment_data"] = string(data)
		updates["paid_at"] = at
	}
	from := []string{domain.RecordPending}
	if status == domain.RecordPaid {
		from = append(from, domain.RecordExpired)
	}
	return r.db.Model(&models.PaymentRecord{}).
		Where("md5 = ? AND status IN ?", md5, from).
		Updates(updates).Error
}
