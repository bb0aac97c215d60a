package header

// Well-known header names, as carried on the wire (canonical case).
const (
	NameToPath              = "To-Path"
	NameFromPath             = "From-Path"
	NameUsePath              = "Use-Path"
	NameMessageID            = "Message-ID"
	NameByteRange            = "Byte-Range"
	NameSuccessReport        = "Success-Report"
	NameFailureReport        = "Failure-Report"
	NameStatus               = "Status"
	NameContentType          = "Content-Type"
	NameContentID            = "Content-ID"
	NameContentDescription   = "Content-Description"
	NameContentDisposition   = "Content-Disposition"
	NameUseNickname          = "Use-Nickname"
	NameExpires              = "Expires"
	NameMinExpires           = "Min-Expires"
	NameMaxExpires           = "Max-Expires"
	NameAuthorization        = "Authorization"
	NameAuthenticationInfo   = "Authentication-Info"
	NameWWWAuthenticate      = "WWW-Authenticate"
	NameKeepAlive            = "Keep-Alive"
)

var kindByName = map[string]Kind{
	NameToPath:            KindURIList,
	NameFromPath:          KindURIList,
	NameUsePath:           KindURIList,
	NameMessageID:         KindOpaqueString,
	NameByteRange:         KindByteRange,
	NameSuccessReport:     KindEnum,
	NameFailureReport:     KindEnum,
	NameStatus:            KindStatus,
	NameContentType:       KindOpaqueString,
	NameContentID:         KindOpaqueString,
	NameContentDescription: KindOpaqueString,
	NameContentDisposition: KindContentDisposition,
	NameUseNickname:       KindUTF8String,
	NameExpires:           KindInteger,
	NameMinExpires:        KindInteger,
	NameMaxExpires:        KindInteger,
	NameAuthorization:     KindDigest,
	NameAuthenticationInfo: KindParameterList,
	NameWWWAuthenticate:   KindDigest,
	NameKeepAlive:         KindOpaqueString,
}

var enumValuesByName = map[string][]string{
	NameSuccessReport: {"yes", "no"},
	NameFailureReport: {"yes", "no", "partial"},
}

// KindOf returns the value kind for a header name. Unknown names default to
// KindOpaqueString per SPEC_FULL.md §4.A.
func KindOf(name string) Kind {
	if k, ok := kindByName[name]; ok {
		return k
	}
	return KindOpaqueString
}

// EnumValues returns the allowed values for an enum-kind header, or nil if
// name is not a known enum header.
func EnumValues(name string) []string {
	return enumValuesByName[name]
}

// Precedence level for canonical header ordering on the wire, per
// SPEC_FULL.md §4.A. Tie-breaking within a level is unspecified.
const (
	levelToPath = iota
	levelFromPath
	levelCore
	levelContent
	levelContentType
)

var levelByName = map[string]int{
	NameToPath:            levelToPath,
	NameFromPath:          levelFromPath,
	NameStatus:            levelCore,
	NameMessageID:         levelCore,
	NameByteRange:         levelCore,
	NameSuccessReport:     levelCore,
	NameFailureReport:     levelCore,
	NameAuthorization:     levelCore,
	NameAuthenticationInfo: levelCore,
	NameWWWAuthenticate:   levelCore,
	NameExpires:           levelCore,
	NameMinExpires:        levelCore,
	NameMaxExpires:        levelCore,
	NameUsePath:           levelCore,
	NameUseNickname:       levelCore,
	NameContentID:         levelContent,
	NameContentDescription: levelContent,
	NameContentDisposition: levelContent,
	NameContentType:       levelContentType,
}

// Level returns the canonical precedence level used to order headers during
// chunk serialization (SPEC_FULL.md §4.A). Unknown "Content-*" headers
// default to the content level; all other unknowns default to the core
// level.
func Level(name string) int {
	if l, ok := levelByName[name]; ok {
		return l
	}
	if len(name) >= 8 && name[:8] == "Content-" {
		return levelContent
	}
	return levelCore
}
