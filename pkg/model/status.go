package model

// StatusCode is the result of a server action. Codes are grouped by range so
// clients can switch on them or on their Category.
type StatusCode int32

const (
	StatusSuccess StatusCode = 0

	// Connection identity codes
	StatusIdentityNotConnected StatusCode = 0xFF + iota - 1
	StatusIdentityAlreadyConnected
)

const (
	// User codes
	StatusUserAlreadyConnected StatusCode = 0x1FF + iota
	StatusUserNotConnected
	StatusUserAlreadyExist
	StatusUserDoesNotExist
	StatusUserWrongPassword
	StatusUserIncorrectIdentity
	StatusUserIncorrectToken
	StatusUserInvalidName
)

const (
	// Group codes
	StatusGroupAlreadyExist StatusCode = 0x2FF + iota
	StatusGroupDoesNotExist
	StatusGroupMemberAlreadyExist
	StatusGroupMemberDoesNotExist
	StatusGroupInvalidName
)

const (
	// Request and server codes
	StatusUnsupportedAction StatusCode = 0x3FF + iota
	StatusMalformedRequest
	StatusInternalError
)

// Category groups codes by range.
type Category int

const (
	CategorySuccess Category = iota
	CategoryIdentity
	CategoryUser
	CategoryGroup
	CategoryRequest
)

var statusNames = map[StatusCode]string{
	StatusSuccess:                  "SUCCESS",
	StatusIdentityNotConnected:     "IDENTITY_NOT_CONNECTED",
	StatusIdentityAlreadyConnected: "IDENTITY_ALREADY_CONNECTED",
	StatusUserAlreadyConnected:     "USER_ALREADY_CONNECTED",
	StatusUserNotConnected:         "USER_NOT_CONNECTED",
	StatusUserAlreadyExist:         "USER_ALREADY_EXIST",
	StatusUserDoesNotExist:         "USER_DOES_NOT_EXIST",
	StatusUserWrongPassword:        "USER_WRONG_PASSWORD",
	StatusUserIncorrectIdentity:    "USER_INCORRECT_IDENTITY",
	StatusUserIncorrectToken:       "USER_INCORRECT_TOKEN",
	StatusUserInvalidName:          "USER_INVALID_NAME",
	StatusGroupAlreadyExist:        "GROUP_ALREADY_EXIST",
	StatusGroupDoesNotExist:        "GROUP_DOES_NOT_EXIST",
	StatusGroupMemberAlreadyExist:  "GROUP_MEMBER_ALREADY_EXIST",
	StatusGroupMemberDoesNotExist:  "GROUP_MEMBER_DOES_NOT_EXIST",
	StatusGroupInvalidName:         "GROUP_INVALID_NAME",
	StatusUnsupportedAction:        "UNSUPPORTED_ACTION",
	StatusMalformedRequest:         "MALFORMED_REQUEST",
	StatusInternalError:            "INTERNAL_ERROR",
}

func (c StatusCode) String() string {
	if name, ok := statusNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// OK reports whether c is StatusSuccess.
func (c StatusCode) OK() bool { return c == StatusSuccess }

// Valid returns true if c is one of the defined codes.
func (c StatusCode) Valid() bool {
	_, ok := statusNames[c]
	return ok
}

// Category returns the range c falls in.
func (c StatusCode) Category() Category {
	switch {
	case c == StatusSuccess:
		return CategorySuccess
	case c < StatusUserAlreadyConnected:
		return CategoryIdentity
	case c < StatusGroupAlreadyExist:
		return CategoryUser
	case c < StatusUnsupportedAction:
		return CategoryGroup
	default:
		return CategoryRequest
	}
}
