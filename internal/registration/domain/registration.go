package domain

// StatusSuccess is the business status the store functions return on success.
// Every other status string is opaque and passed through to callers.
const StatusSuccess = "SUCCESS"

// Status values produced by the store functions in internal/db/migrations.
const (
	StatusDuplicateUsername      = "DUPLICATE_USERNAME"
	StatusDuplicateContactNumber = "DUPLICATE_CONTACT_NUMBER"
	StatusDuplicatePlateNumber   = "DUPLICATE_PLATE_NUMBER"
	StatusUserNotFound           = "USER_NOT_FOUND"
	StatusInvalidOTP             = "INVALID_OTP"
	StatusOTPExpired             = "OTP_EXPIRED"
	StatusAlreadyVerified        = "ALREADY_VERIFIED"
)

// StatusStoreError is reported when a store function raised a SQL error
// instead of answering with a business status.
const StatusStoreError = "STORE_ERROR"

// RegistrationRequest is the caller-supplied profile for a new driver account.
// All fields are mandatory.
type RegistrationRequest struct {
	FirstName          string
	LastName           string
	Address            string
	ContactNumber      string
	EmailAddress       string
	VehiclePlateNumber string
	VehicleBrand       string
	VehicleModel       string
	Username           string
}

// FullName is first and last name joined by a single space.
func (r RegistrationRequest) FullName() string {
	return r.FirstName + " " + r.LastName
}

// AccountPayload is what CreateAccount sends to the store. PII fields hold
// ciphertext; Username, OTP and RFID are plaintext.
type AccountPayload struct {
	FullName           string
	Address            string
	ContactNumber      string
	EmailAddress       string
	VehiclePlateNumber string
	VehicleBrand       string
	VehicleModel       string
	Username           string
	OTP                string
	RFID               string
}

// CreateResult is the store's answer to CreateAccount.
type CreateResult struct {
	Status string
	UserID int64
}

// VerifyResult is the store's answer to VerifyOTP. MobileNumber and Name are
// ciphertext and only meaningful when Status is SUCCESS.
type VerifyResult struct {
	Status       string
	MobileNumber string
	Name         string
}

// ReissueResult is the store's answer to ReissueOTP.
type ReissueResult struct {
	Status       string
	MobileNumber string
	Name         string
}
