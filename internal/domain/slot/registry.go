package slot

import (
	"strconv"
	"strings"
)

// SectionClients is the one slot family whose item count is user-controlled.
// Its descriptors are synthesized in Resolve instead of declared here.
const SectionClients = "clientes"

// Descriptor describes one editable image placement on the public site.
// Target size and aspect ratio are labels for the studio UI; MaxSize and the
// image/* MIME requirement are enforced before any upload is attempted.
type Descriptor struct {
	Section     string   `json:"section"`
	ItemID      int      `json:"item_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Size        string   `json:"size"`
	AspectRatio string   `json:"aspect_ratio"`
	MaxSize     string   `json:"max_size"` // e.g. "500KB", "1.5MB"
	Formats     []string `json:"formats"`
}

// Section groups the slots of one visual area of the marketing page.
type Section struct {
	Name        string       `json:"name"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Dynamic     bool         `json:"dynamic"`
	Items       []Descriptor `json:"items"`
}

// Sections returns the full slot catalog in display order.
func Sections() []Section {
	return sections
}

var sections = []Section{
	{
		Name:        "logo",
		Title:       "Logo Principal",
		Description: "Logo principal del sitio web",
		Items: []Descriptor{
			{Section: "logo", ItemID: 1, Title: "Logo Principal", Description: "Logo que aparece en el header del sitio",
				Size: "200x80px", AspectRatio: "5:2", MaxSize: "500KB", Formats: []string{"PNG", "SVG"}},
		},
	},
	{
		Name:        "hero",
		Title:       "Hero Section",
		Description: "Imagen principal de fondo",
		Items: []Descriptor{
			{Section: "hero", ItemID: 1, Title: "Background Image", Description: "Imagen de fondo principal",
				Size: "1920x1080px", AspectRatio: "16:9", MaxSize: "2MB", Formats: []string{"JPG", "PNG", "WebP"}},
		},
	},
	{
		Name:        SectionClients,
		Title:       "Clientes",
		Description: "Logos de empresas clientes",
		Dynamic:     true,
	},
	{
		Name:        "servicios",
		Title:       "Services",
		Description: "Imágenes de servicios",
		Items: []Descriptor{
			{Section: "servicios", ItemID: 1, Title: "Seguridad Laboral", Description: "Imagen del servicio",
				Size: "400x300px", AspectRatio: "4:3", MaxSize: "1MB", Formats: []string{"JPG", "PNG"}},
			{Section: "servicios", ItemID: 2, Title: "Higiene Industrial", Description: "Imagen del servicio",
				Size: "400x300px", AspectRatio: "4:3", MaxSize: "1MB", Formats: []string{"JPG", "PNG"}},
			{Section: "servicios", ItemID: 3, Title: "Medio Ambiente", Description: "Imagen del servicio",
				Size: "400x300px", AspectRatio: "4:3", MaxSize: "1MB", Formats: []string{"JPG", "PNG"}},
		},
	},
	{
		Name:        "about",
		Title:       "About Us",
		Description: "Imágenes de la sección nosotros",
		Items: []Descriptor{
			{Section: "about", ItemID: 1, Title: "Team Image", Description: "Imagen del equipo",
				Size: "600x600px", AspectRatio: "1:1", MaxSize: "1.5MB", Formats: []string{"JPG", "PNG"}},
		},
	},
}

// Resolve returns the descriptor for (section, itemID), or false when no such
// slot exists. Client logo descriptors are synthesized for any itemID >= 1
// since that family is unbounded.
func Resolve(section string, itemID int) (Descriptor, bool) {
	if itemID < 1 {
		return Descriptor{}, false
	}
	if section == SectionClients {
		return Descriptor{
			Section:     SectionClients,
			ItemID:      itemID,
			Title:       "Logo de Cliente " + strconv.Itoa(itemID),
			Description: "Logo en el carrusel de clientes",
			Size:        "200x100px",
			AspectRatio: "2:1",
			MaxSize:     "500KB",
			Formats:     []string{"JPG", "PNG", "WebP"},
		}, true
	}
	for _, sec := range sections {
		if sec.Name != section {
			continue
		}
		for _, item := range sec.Items {
			if item.ItemID == itemID {
				return item, true
			}
		}
	}
	return Descriptor{}, false
}

// MaxBytes converts the descriptor's size label into a byte limit.
func (d Descriptor) MaxBytes() int64 {
	s := strings.ToUpper(strings.TrimSpace(d.MaxSize))
	unit := int64(1)
	switch {
	case strings.HasSuffix(s, "KB"):
		unit = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "MB"):
		unit = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int64(v * float64(unit))
}
