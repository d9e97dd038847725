package user

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// Form messages.
const (
	msgRequired         = "this field is required"
	msgUsernameTaken    = "username already exists"
	msgEmailTaken       = "email already exists"
	msgPasswordMismatch = "passwords do not match"
	msgPasswordShort    = "password must have at least 6 characters"
	msgInvalidCPF       = "enter a valid CPF"
	msgInvalidZipCode   = "invalid ZIP code, enter its 8 digits"
)

// ValidationErrors maps form field names to a message for each failed rule.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// UserForm is the account part of the registration and edit forms.
type UserForm struct {
	FirstName string `json:"firstName" validate:"max=150"`
	LastName  string `json:"lastName"  validate:"max=150"`
	Username  string `json:"username"  validate:"required,max=150"`
	Email     string `json:"email"     validate:"required,email,max=254"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// ProfileForm is the profile part of the registration and edit forms.
type ProfileForm struct {
	Age        int    `json:"age"        validate:"gte=0,lte=150"`
	BirthDate  string `json:"birthDate"  validate:"required,datetime=2006-01-02" example:"1990-05-17"`
	CPF        string `json:"cpf"        validate:"required"                     example:"529.982.247-25"`
	Address    string `json:"address"    validate:"required,max=50"`
	Number     string `json:"number"     validate:"required,max=5"`
	Complement string `json:"complement" validate:"max=30"`
	District   string `json:"district"   validate:"required,max=30"`
	ZipCode    string `json:"zipCode"    validate:"required"                     example:"01310-100"`
	City       string `json:"city"       validate:"required,max=30"`
	State      string `json:"state"      validate:"required,len=2,alpha"        example:"SP"`
}

// Lookup finds existing accounts for uniqueness checks.
type Lookup interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateUserForm applies the account rules. current is nil when
// registering and the signed-in user when editing. A nil ValidationErrors
// means the form is valid; a non-nil error means a lookup failed.
//
// Registering requires both passwords. When editing, an empty password keeps
// the current one. A short password reports the length rule on "password"
// even when the confirmation also differs.
func ValidateUserForm(ctx context.Context, lookup Lookup, form UserForm, current *User) (ValidationErrors, error) {
	errs := structErrors(form)

	if form.Username != "" {
		taken, err := takenByOther(ctx, lookup.GetByUsername, form.Username, current)
		if err != nil {
			return nil, err
		}
		if taken {
			errs.set("username", msgUsernameTaken)
		}
	}
	if form.Email != "" {
		taken, err := takenByOther(ctx, lookup.GetByEmail, form.Email, current)
		if err != nil {
			return nil, err
		}
		if taken {
			errs.set("email", msgEmailTaken)
		}
	}

	if current == nil {
		if form.Password == "" {
			errs.set("password", msgRequired)
		}
		if form.Password2 == "" {
			errs.set("password2", msgRequired)
		}
	}
	// On update an empty password keeps the stored one, so only a new
	// password needs a matching confirmation.
	if (current == nil || form.Password != "") && form.Password != form.Password2 {
		errs.set("password", msgPasswordMismatch)
		errs.set("password2", msgPasswordMismatch)
	}
	if form.Password != "" && len(form.Password) < MinPasswordLength {
		errs.set("password", msgPasswordShort)
	}

	return errs.orNil(), nil
}

// ValidateProfileForm applies the profile rules and returns the normalized
// profile when the form is valid.
func ValidateProfileForm(form ProfileForm) (*Profile, ValidationErrors) {
	errs := structErrors(form)

	cpf := onlyDigits(form.CPF)
	if form.CPF != "" && !ValidCPF(cpf) {
		errs.set("cpf", msgInvalidCPF)
	}
	zip := onlyDigits(form.ZipCode)
	if form.ZipCode != "" && (len(zip) != 8 || strings.ContainsAny(form.ZipCode, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")) {
		errs.set("zipCode", msgInvalidZipCode)
	}
	if errs := errs.orNil(); errs != nil {
		return nil, errs
	}

	birth, _ := time.Parse(time.DateOnly, form.BirthDate)
	return &Profile{
		Age:        form.Age,
		BirthDate:  birth,
		CPF:        cpf,
		Address:    strings.TrimSpace(form.Address),
		Number:     strings.TrimSpace(form.Number),
		Complement: strings.TrimSpace(form.Complement),
		District:   strings.TrimSpace(form.District),
		ZipCode:    zip,
		City:       strings.TrimSpace(form.City),
		State:      strings.ToUpper(form.State),
	}, nil
}

// ValidCPF checks the two check digits of a Brazilian CPF given as 11 digits.
func ValidCPF(cpf string) bool {
	if len(cpf) != 11 || strings.Count(cpf, cpf[:1]) == 11 {
		return false
	}
	for n := 9; n <= 10; n++ {
		sum := 0
		for i := 0; i < n; i++ {
			d := int(cpf[i] - '0')
			if d < 0 || d > 9 {
				return false
			}
			sum += d * (n + 1 - i)
		}
		check := sum * 10 % 11
		if check == 10 {
			check = 0
		}
		if check != int(cpf[n]-'0') {
			return false
		}
	}
	return true
}

func takenByOther(ctx context.Context, find func(context.Context, string) (*User, error), value string, current *User) (bool, error) {
	found, err := find(ctx, value)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return current == nil || found.ID != current.ID, nil
}

func structErrors(form any) ValidationErrors {
	errs := ValidationErrors{}
	var fieldErrs validator.ValidationErrors
	if err := validate.Struct(form); errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			errs.set(fe.Field(), fieldMessage(fe))
		}
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "email":
		return "enter a valid email address"
	case "max":
		return "ensure this value has at most " + fe.Param() + " characters"
	case "len":
		return "ensure this value has exactly " + fe.Param() + " characters"
	case "gte", "lte":
		return "value out of range"
	case "datetime":
		return "enter a valid date (YYYY-MM-DD)"
	case "alpha":
		return "only letters are allowed"
	default:
		return "invalid value"
	}
}

func (v ValidationErrors) set(field, msg string) {
	v[field] = msg
}

func (v ValidationErrors) orNil() ValidationErrors {
	if len(v) == 0 {
		return nil
	}
	return v
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
