package localstore

const (
	KeyUsers       = "bb_users"       // []string, 0 or 1 entries
	KeyMessages    = "bb_messages"    // []models.Message
	KeyPresence    = "bb_presence"    // models.Presence
	KeyCurrentUser = "bb_currentUser" // string
	KeyPinHash     = "bb_pin_hash"    // raw hex string, not JSON
	KeyLocked      = "bb_locked"      // bool
)

// AllKeys lists every key the app persists, in backup order.
var AllKeys = []string{KeyUsers, KeyMessages, KeyPresence, KeyCurrentUser, KeyPinHash, KeyLocked}
