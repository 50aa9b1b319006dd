package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-finance-api/internal/models"
)

// StudentRepository manages persistence for students and their satellite
// finance records: promotion history, clearance history and physical
// requirements. History rows are returned most-recent-first.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Term != "" {
		conditions = append(conditions, fmt.Sprintf("s.term = $%d", len(args)+1))
		args = append(args, filter.Term)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.admission_no) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":    "s.full_name",
		"admission_no": "s.admission_no",
		"balance":      "s.balance",
		"created_at":   "s.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.admission_no, s.full_name, s.term, s.balance, s.total_fees, s.previous_balance,
        s.bursary_id, s.account_status, s.active, s.created_at, s.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID with promotion history, clearance history
// and physical requirements loaded.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, admission_no, full_name, term, balance, total_fees, previous_balance,
        bursary_id, account_status, active, created_at, updated_at
        FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	if err := r.loadSatellites(ctx, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *StudentRepository) loadSatellites(ctx context.Context, student *models.Student) error {
	const promotionQuery = `SELECT id, student_id, date, from_term, to_term, previous_balance, new_balance
        FROM promotion_entries WHERE student_id = $1 ORDER BY date DESC, id DESC`
	if err := r.db.SelectContext(ctx, &student.PromotionHistory, promotionQuery, student.ID); err != nil {
		return fmt.Errorf("load promotion history: %w", err)
	}

	const clearanceQuery = `SELECT id, student_id, date, status, reason, actor
        FROM clearance_entries WHERE student_id = $1 ORDER BY date DESC, id DESC`
	if err := r.db.SelectContext(ctx, &student.ClearanceHistory, clearanceQuery, student.ID); err != nil {
		return fmt.Errorf("load clearance history: %w", err)
	}

	const requirementQuery = `SELECT student_id, name, required, brought
        FROM physical_requirements WHERE student_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &student.Requirements, requirementQuery, student.ID); err != nil {
		return fmt.Errorf("load requirements: %w", err)
	}

	const serviceQuery = `SELECT service_id FROM student_services WHERE student_id = $1`
	if err := r.db.SelectContext(ctx, &student.ServiceIDs, serviceQuery, student.ID); err != nil {
		return fmt.Errorf("load services: %w", err)
	}
	return nil
}

// ListActiveIDs returns the IDs of every active student.
func (r *StudentRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, "SELECT id FROM students WHERE active = true ORDER BY admission_no"); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return ids, nil
}

// UpdateFinancials persists the term, balance columns and active flag after a
// promotion, reversal or graduation.
func (r *StudentRepository) UpdateFinancials(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET term = :term, balance = :balance, total_fees = :total_fees,
        previous_balance = :previous_balance, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student financials: %w", err)
	}
	return nil
}

// SetAccountStatus pins (or, with nil, clears) the manual account status.
func (r *StudentRepository) SetAccountStatus(ctx context.Context, id string, status *models.AccountStatus) error {
	const query = `UPDATE students SET account_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set account status: %w", err)
	}
	return nil
}

// AppendClearanceEntry records one status recategorisation.
func (r *StudentRepository) AppendClearanceEntry(ctx context.Context, entry *models.ClearanceEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}
	const query = `INSERT INTO clearance_entries (id, student_id, date, status, reason, actor)
        VALUES (:id, :student_id, :date, :status, :reason, :actor)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append clearance entry: %w", err)
	}
	return nil
}

// PushPromotionEntry records one promotion snapshot.
func (r *StudentRepository) PushPromotionEntry(ctx context.Context, entry *models.PromotionEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}
	const query = `INSERT INTO promotion_entries (id, student_id, date, from_term, to_term, previous_balance, new_balance)
        VALUES (:id, :student_id, :date, :from_term, :to_term, :previous_balance, :new_balance)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("push promotion entry: %w", err)
	}
	return nil
}

// PopPromotionEntry removes a reversed promotion snapshot.
func (r *StudentRepository) PopPromotionEntry(ctx context.Context, entryID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM promotion_entries WHERE id = $1", entryID); err != nil {
		return fmt.Errorf("pop promotion entry: %w", err)
	}
	return nil
}

// SetPromotionNewBalance records the post-promotion outstanding balance on an
// existing snapshot.
func (r *StudentRepository) SetPromotionNewBalance(ctx context.Context, entryID string, newBalance int64) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE promotion_entries SET new_balance = $2 WHERE id = $1", entryID, newBalance); err != nil {
		return fmt.Errorf("set promotion new balance: %w", err)
	}
	return nil
}

// UpsertRequirement records how many units of a physical requirement a student
// has brought in.
func (r *StudentRepository) UpsertRequirement(ctx context.Context, req *models.PhysicalRequirement) error {
	const query = `INSERT INTO physical_requirements (student_id, name, required, brought)
        VALUES (:student_id, :name, :required, :brought)
        ON CONFLICT (student_id, name) DO UPDATE SET required = EXCLUDED.required, brought = EXCLUDED.brought`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("upsert requirement: %w", err)
	}
	return nil
}
