package cloud

import "errors"

var ErrNoRoom = errors.New("room id is required")
