package enum

//go:generate go tool enumer -type=OnDelete,GoToMessage,PremiumLockKind -trimprefix=OnDelete,GoToMessage,PremiumLockKind -transform=kebab -output=starboard_enumer.go

// OnDelete controls what happens when a moderator deletes a starboard post.
type OnDelete int

const (
	// OnDeleteRepost clears the posted message so the next refresh may send it again.
	OnDeleteRepost OnDelete = iota
	// OnDeleteIgnore leaves the original message untouched.
	OnDeleteIgnore
	// OnDeleteTrashAll trashes the original message on every starboard.
	OnDeleteTrashAll
	// OnDeleteFreezeAll freezes the original message on every starboard.
	OnDeleteFreezeAll
)

// GoToMessage is the style of the jump-to-original widget on a starboard post.
type GoToMessage int

const (
	GoToMessageNone GoToMessage = iota
	GoToMessageLink
	GoToMessageButton
	GoToMessageMention
)

// PremiumLockKind identifies which table a premium lock belongs to.
type PremiumLockKind int

const (
	PremiumLockKindStarboard PremiumLockKind = iota
	PremiumLockKindAutostar
)
