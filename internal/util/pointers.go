package util

func BoolPtr(value bool) *bool {
	return &value
}
