package enums

// UserType distinguishes buyers from shop owners.
type UserType string

const (
	UserTypeBuyer UserType = "buyer"
	UserTypeShop  UserType = "shop"
)

var userTypes = values[UserType]{UserTypeBuyer, UserTypeShop}

func (u UserType) String() string { return string(u) }

func (u UserType) IsValid() bool { return userTypes.has(u) }

func ParseUserType(value string) (UserType, error) {
	return userTypes.parse("user type", value)
}
