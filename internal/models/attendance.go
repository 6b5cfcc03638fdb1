package models

import "time"

// Источники отметки посещения.
const (
	AttendanceSourceKiosk      = "kiosk"       // Член клуба отсканировал QR
	AttendanceSourceKioskStaff = "kiosk_staff" // Сотрудник, проход без абонемента
)

// AttendanceRecord неизменяемый факт посещения.
// Создаётся ровно один раз на принятый чек-ин и никогда не изменяется.
type AttendanceRecord struct {
	ID             string     // UUID записи
	MemberUID      string     // Кто прошёл
	SubscriptionID *string    // По какому абонементу, nil для персонала
	AttendedAt     time.Time  // Момент сканирования
	Source         string     // kiosk или kiosk_staff
	ScannedBy      string     // UID оператора киоска
}

// DummyCheckIn принимает данные сканирования из JSON-запроса.
type DummyCheckIn struct {
	Code string `json:"code" validate:"required"`
}

// CheckInResult снимок состояния после принятого чек-ина,
// отображается на экране киоска.
type CheckInResult struct {
	MemberUID        string     `json:"member_uid"`
	SubscriptionID   *string    `json:"subscription_id,omitempty"`
	RemainingClasses *int       `json:"remaining_classes,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	StaffAccess      bool       `json:"staff_access,omitempty"`
}
