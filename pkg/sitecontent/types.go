package sitecontent

import (
	"sort"
	"strings"
)

// Locale is a site language
type Locale string

// Supported locales
const (
	LocaleIT Locale = "it"
	LocaleEN Locale = "en"
)

// Alignment is the text-alignment hint carried by a LocalizedString
type Alignment string

// Alignment constants (typed).
const (
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

// IsValid reports whether a is one of the known alignments
func (a Alignment) IsValid() bool {
	switch a {
	case AlignLeft, AlignCenter, AlignRight, AlignJustify:
		return true
	}
	return false
}

// LocalizedString is a bilingual text value
type LocalizedString struct {
	IT    string    `json:"it"`
	EN    string    `json:"en"`
	Align Alignment `json:"align,omitempty"`
}

// Value returns the text for the requested locale. An empty locale falls back
// to Italian, then to English, so a value with one populated locale never
// renders as an empty string.
func (s LocalizedString) Value(locale Locale) string {
	var v string
	switch locale {
	case LocaleEN:
		v = s.EN
	default:
		v = s.IT
	}
	if v != "" {
		return v
	}
	if s.IT != "" {
		return s.IT
	}
	return s.EN
}

// Alignment returns the alignment hint, defaulting to left
func (s LocalizedString) Alignment() Alignment {
	if s.Align.IsValid() {
		return s.Align
	}
	return AlignLeft
}

// GalleryItem is one image of an ordered gallery
type GalleryItem struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Link is a labelled navigation entry
type Link struct {
	Label  LocalizedString `json:"label"`
	Href   string          `json:"href"`
	Action string          `json:"action,omitempty"`
}

// CallToAction is a hero button
type CallToAction struct {
	Label LocalizedString `json:"label"`
	Href  string          `json:"href"`
	Type  string          `json:"type"`
	Icon  string          `json:"icon"`
}

// SEO holds page metadata
type SEO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	OGImage     string `json:"ogImage"`
	Keywords    string `json:"keywords"`
}

// HeroSection is the landing banner
type HeroSection struct {
	VideoURL        string          `json:"videoUrl"`
	VideoStart      float64         `json:"videoStart"`
	VideoAutoplay   bool            `json:"videoAutoplay"`
	MediaType       string          `json:"mediaType"`
	ShowLogo        bool            `json:"showLogo"`
	LogoPlacement   string          `json:"logoPlacement,omitempty"`
	BackgroundImage string          `json:"backgroundImage"`
	Title           LocalizedString `json:"title"`
	Subtitle        LocalizedString `json:"subtitle"`
	CTA             []CallToAction  `json:"cta"`
	ScrollLabel     LocalizedString `json:"scrollLabel"`
}

// IntroSection is the text-and-gallery introduction block
type IntroSection struct {
	Kicker     LocalizedString   `json:"kicker"`
	Title      LocalizedString   `json:"title"`
	Lead       LocalizedString   `json:"lead"`
	Paragraphs []LocalizedString `json:"paragraphs"`
	Gallery    []GalleryItem     `json:"gallery"`
}

// FeatureItem is one card of the "how we do it" block
type FeatureItem struct {
	ID    string          `json:"id"`
	Icon  string          `json:"icon"`
	Title LocalizedString `json:"title"`
	Text  LocalizedString `json:"text"`
}

// FeatureSection is the "how we do it" block with a call to action and carousel
type FeatureSection struct {
	Kicker  LocalizedString `json:"kicker"`
	Title   LocalizedString `json:"title"`
	Lead    LocalizedString `json:"lead"`
	CTA     Link            `json:"cta"`
	Items   []FeatureItem   `json:"items"`
	Gallery []GalleryItem   `json:"gallery"`
}

// HeadingSection is a kicker/title/lead header
type HeadingSection struct {
	Kicker LocalizedString `json:"kicker"`
	Title  LocalizedString `json:"title"`
	Lead   LocalizedString `json:"lead"`
}

// GridSection is the image grid
type GridSection struct {
	Kicker LocalizedString `json:"kicker"`
	Title  LocalizedString `json:"title"`
	Lead   LocalizedString `json:"lead"`
	Items  []GalleryItem   `json:"items"`
}

// ContactSection holds the contact card
type ContactSection struct {
	Kicker         LocalizedString `json:"kicker"`
	Title          LocalizedString `json:"title"`
	Lead           LocalizedString `json:"lead"`
	Location       LocalizedString `json:"location"`
	CardLead       LocalizedString `json:"cardLead"`
	Email          string          `json:"email"`
	Instagram      string          `json:"instagram"`
	ShowEmail      *bool           `json:"showEmail,omitempty"`
	ShowInstagram  *bool           `json:"showInstagram,omitempty"`
	ShowWhatsApp   *bool           `json:"showWhatsApp,omitempty"`
	WhatsAppNumber string          `json:"whatsappNumber,omitempty"`
	HomeLabel      LocalizedString `json:"homeLabel"`
}

// Sections groups the home page blocks
type Sections struct {
	Hero           HeroSection    `json:"hero"`
	OperaViva      IntroSection   `json:"operaViva"`
	ComeLoFacciamo FeatureSection `json:"comeLoFacciamo"`
	Eventi         HeadingSection `json:"eventi"`
	Galleria       GridSection    `json:"galleria"`
	Contatti       ContactSection `json:"contatti"`
}

// TechniqueSection is one entry of the techniques or offer page.
// Image is the legacy single-image field; Images supersedes it when present.
type TechniqueSection struct {
	ID         string            `json:"id"`
	Image      string            `json:"image"`
	Images     []GalleryItem     `json:"images,omitempty"`
	Title      LocalizedString   `json:"title"`
	Paragraphs []LocalizedString `json:"paragraphs"`
}

// Gallery returns the section images, falling back to the legacy single image
func (t TechniqueSection) Gallery() []GalleryItem {
	if len(t.Images) > 0 {
		return t.Images
	}
	if t.Image == "" {
		return nil
	}
	return []GalleryItem{{Src: t.Image, Alt: t.Title.Value(LocaleIT)}}
}

// TechniquesPage is the ordered list of technique sections
type TechniquesPage struct {
	Kicker       LocalizedString    `json:"kicker"`
	Title        LocalizedString    `json:"title"`
	Lead         LocalizedString    `json:"lead"`
	BackLabel    LocalizedString    `json:"backLabel"`
	Sections     []TechniqueSection `json:"sections"`
	Locked       bool               `json:"locked,omitempty"`
	PasswordHash string             `json:"passwordHash,omitempty"`
}

// Event is one dated entry of the events timeline
type Event struct {
	Title       LocalizedString `json:"title"`
	Date        string          `json:"date"`
	Description LocalizedString `json:"description"`
	Link        string          `json:"link,omitempty"`
}

// EventsTimeline holds the timeline labels
type EventsTimeline struct {
	Title        LocalizedString `json:"title"`
	Lead         LocalizedString `json:"lead"`
	DetailsLabel LocalizedString `json:"detailsLabel"`
}

// StorageKind selects the media storage backend
type StorageKind string

// Storage backends
const (
	StorageBlob StorageKind = "blob-store"
	StorageGit  StorageKind = "git-repo"
)

// Normalize maps legacy names to their current values; unknown names become
// the empty string.
func (k StorageKind) Normalize() StorageKind {
	switch strings.ToLower(string(k)) {
	case string(StorageBlob), "vercel-blob", "blob":
		return StorageBlob
	case string(StorageGit), "github", "git":
		return StorageGit
	}
	return ""
}

// Default image policy values
const (
	DefaultMaxDimension = 1920
	DefaultMaxSizeKB    = 700
)

// AdminConfig governs media ingestion
type AdminConfig struct {
	Storage      StorageKind `json:"storage"`
	MaxDimension int         `json:"maxDimension"`
	MaxSizeKB    int         `json:"maxSizeKB"`
}

// DefaultAdminConfig returns the configuration used when the document has none
func DefaultAdminConfig() AdminConfig {
	return AdminConfig{
		Storage:      StorageBlob,
		MaxDimension: DefaultMaxDimension,
		MaxSizeKB:    DefaultMaxSizeKB,
	}
}

// WithDefaults fills missing or invalid fields from DefaultAdminConfig
func (c AdminConfig) WithDefaults() AdminConfig {
	def := DefaultAdminConfig()
	if k := c.Storage.Normalize(); k != "" {
		def.Storage = k
	}
	if c.MaxDimension > 0 {
		def.MaxDimension = c.MaxDimension
	}
	if c.MaxSizeKB > 0 {
		def.MaxSizeKB = c.MaxSizeKB
	}
	return def
}

// SiteContent is the typed, read-only view of a content document
type SiteContent struct {
	SEO    SEO `json:"seo"`
	Header struct {
		Nav []Link `json:"nav"`
	} `json:"header"`
	Footer struct {
		Copyright string `json:"copyright"`
		Links     []Link `json:"links"`
	} `json:"footer"`
	Sections   Sections       `json:"sections"`
	Offer      TechniquesPage `json:"offer"`
	Techniques TechniquesPage `json:"techniques"`
	Login      struct {
		Title         string `json:"title"`
		PasswordLabel string `json:"passwordLabel"`
		LoginBtn      string `json:"loginBtn"`
	} `json:"login"`
	Events          []Event        `json:"events,omitempty"`
	EventsTimeline  EventsTimeline `json:"eventsTimeline"`
	ContactsSection struct {
		ButtonLabel LocalizedString `json:"buttonLabel"`
	} `json:"contactsSection"`
	AdminConfig *AdminConfig `json:"adminConfig,omitempty"`
}

// SortEvents returns a copy of events ordered by date, newest first.
// Storage order is left untouched.
func SortEvents(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out
}
