package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT KEYS
// ══════════════════════════════════════════════════════════════════════════════

// DocumentKey - имя слота документа в заявке. Набор слотов фиксирован.
type DocumentKey string

const (
	// DocTranscript - академическая справка (транскрипт).
	DocTranscript DocumentKey = "transcript"
	// DocStatementOfPurpose - мотивационное письмо.
	DocStatementOfPurpose DocumentKey = "statementOfPurpose"
	// DocResumeCV - резюме.
	DocResumeCV DocumentKey = "resume_cv"
	// DocRecommendation1 - первое рекомендательное письмо.
	DocRecommendation1 DocumentKey = "letterOfRecommendation1"
	// DocRecommendation2 - второе рекомендательное письмо.
	DocRecommendation2 DocumentKey = "letterOfRecommendation2"
)

// AllDocumentKeys возвращает все слоты в каноническом порядке.
func AllDocumentKeys() []DocumentKey {
	return []DocumentKey{
		DocTranscript,
		DocStatementOfPurpose,
		DocResumeCV,
		DocRecommendation1,
		DocRecommendation2,
	}
}

// IsValid проверяет, что ключ входит в фиксированный набор.
func (k DocumentKey) IsValid() bool {
	switch k {
	case DocTranscript, DocStatementOfPurpose, DocResumeCV, DocRecommendation1, DocRecommendation2:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление ключа.
func (k DocumentKey) String() string {
	return string(k)
}

// ParseDocumentKey разбирает ключ документа из внешнего ввода.
func ParseDocumentKey(raw string) (DocumentKey, error) {
	key := DocumentKey(strings.TrimSpace(raw))
	if !key.IsValid() {
		return "", shared.WrapError("document", "ParseKey", shared.ErrValidation,
			fmt.Sprintf("invalid document key %q", raw), shared.ErrInvalidDocKey)
	}
	return key, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT STATUS
// ══════════════════════════════════════════════════════════════════════════════

// DocumentStatus - состояние отдельного документа.
type DocumentStatus string

const (
	// DocPending - файл ещё не загружен.
	DocPending DocumentStatus = "pending"
	// DocSubmitted - файл загружен и ждёт проверки агентом.
	DocSubmitted DocumentStatus = "submitted"
	// DocApproved - документ принят агентом.
	DocApproved DocumentStatus = "approved"
	// DocRejectedForRevision - документ возвращён студенту на доработку.
	DocRejectedForRevision DocumentStatus = "rejected_for_revision"
)

// IsValid проверяет, что статус корректен.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocPending, DocSubmitted, DocApproved, DocRejectedForRevision:
		return true
	default:
		return false
	}
}

// IsReviewDecision возвращает true для статусов, которые может выставить агент.
func (s DocumentStatus) IsReviewDecision() bool {
	return s == DocApproved || s == DocRejectedForRevision
}

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT
// ══════════════════════════════════════════════════════════════════════════════

// Document - встроенная запись о документе: где лежит файл и чем закончилась проверка.
type Document struct {
	// Location - непрозрачная ссылка на содержимое в файловом хранилище.
	Location  string         `json:"url"`
	Status    DocumentStatus `json:"status"`
	Feedback  string         `json:"feedback,omitempty"`
	UpdatedAt *time.Time     `json:"updatedAt"`
}

// NewDocument создаёт пустой слот в статусе pending.
func NewDocument() Document {
	return Document{Status: DocPending}
}

// IsUploaded возвращает true, если в слот уже загружали файл.
func (d Document) IsUploaded() bool {
	return d.Location != ""
}

// CanReview возвращает true только пока документ ждёт проверки.
func (d Document) CanReview() bool {
	return d.Status == DocSubmitted
}

// resubmit заменяет файл и сбрасывает отзыв. Возвращает вытесненную ссылку.
func (d *Document) resubmit(location string, now time.Time) string {
	previous := d.Location
	d.Location = location
	d.Status = DocSubmitted
	d.Feedback = ""
	d.UpdatedAt = &now
	if previous == location {
		return ""
	}
	return previous
}

// review выставляет решение агента.
func (d *Document) review(status DocumentStatus, feedback string, now time.Time) {
	d.Status = status
	d.Feedback = strings.TrimSpace(feedback)
	d.UpdatedAt = &now
}

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENTS (fixed-field record)
// ══════════════════════════════════════════════════════════════════════════════

// Documents - фиксированный набор слотов документов заявки.
type Documents struct {
	Transcript              Document `json:"transcript"`
	StatementOfPurpose      Document `json:"statementOfPurpose"`
	ResumeCV                Document `json:"resume_cv"`
	LetterOfRecommendation1 Document `json:"letterOfRecommendation1"`
	LetterOfRecommendation2 Document `json:"letterOfRecommendation2"`
}

// NewDocuments создаёт набор слотов, все в статусе pending.
func NewDocuments() Documents {
	return Documents{
		Transcript:              NewDocument(),
		StatementOfPurpose:      NewDocument(),
		ResumeCV:                NewDocument(),
		LetterOfRecommendation1: NewDocument(),
		LetterOfRecommendation2: NewDocument(),
	}
}

// Slot возвращает указатель на слот по ключу или nil для неизвестного ключа.
func (d *Documents) Slot(key DocumentKey) *Document {
	switch key {
	case DocTranscript:
		return &d.Transcript
	case DocStatementOfPurpose:
		return &d.StatementOfPurpose
	case DocResumeCV:
		return &d.ResumeCV
	case DocRecommendation1:
		return &d.LetterOfRecommendation1
	case DocRecommendation2:
		return &d.LetterOfRecommendation2
	default:
		return nil
	}
}

// Get возвращает копию слота.
func (d Documents) Get(key DocumentKey) (Document, bool) {
	slot := d.Slot(key)
	if slot == nil {
		return Document{}, false
	}
	return *slot, true
}

// IsComplete возвращает true, если все обязательные документы одобрены.
func (d Documents) IsComplete(required []DocumentKey) bool {
	return len(d.MissingRequired(required)) == 0
}

// MissingRequired возвращает обязательные ключи, которые ещё не одобрены.
func (d Documents) MissingRequired(required []DocumentKey) []DocumentKey {
	var missing []DocumentKey
	for _, key := range required {
		doc, ok := d.Get(key)
		if !ok || doc.Status != DocApproved {
			missing = append(missing, key)
		}
	}
	return missing
}

// Locations возвращает все ссылки на загруженные файлы.
func (d Documents) Locations() map[DocumentKey]string {
	out := make(map[DocumentKey]string)
	for _, key := range AllDocumentKeys() {
		if doc, _ := d.Get(key); doc.IsUploaded() {
			out[key] = doc.Location
		}
	}
	return out
}

// normalize заполняет пустые статусы (например, после чтения старых записей).
func (d *Documents) normalize() {
	for _, key := range AllDocumentKeys() {
		if slot := d.Slot(key); slot.Status == "" {
			slot.Status = DocPending
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// UPLOADS
// ══════════════════════════════════════════════════════════════════════════════

// Upload - содержимое файла, полученное от студента.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size возвращает размер файла в байтах.
func (u Upload) Size() int64 {
	return int64(len(u.Data))
}
