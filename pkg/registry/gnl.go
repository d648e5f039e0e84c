package registry

import (
	"encoding/xml"
	"fmt"
	"io"
)

const gnlNamespace = "xmlns://afsprakenstelsel.medmij.nl/gegevensdienstnamenlijst/" + version + "/"

// FallbackDisplayName is used when a gegevensdienst id has no entry in the
// GNL.
const FallbackDisplayName = "Onbekend"

// GNL maps a gegevensdienst id to its human-readable name.
type GNL map[string]string

// DisplayName returns the name registered for the id, or
// FallbackDisplayName when the id is unknown.
func (g GNL) DisplayName(id string) string {
	if name, ok := g[id]; ok {
		return name
	}
	return FallbackDisplayName
}

type xmlGNL struct {
	XMLName xml.Name
	Namen   *struct {
		Naam []xmlGegevensdienstnaam `xml:"Gegevensdienstnaam"`
	} `xml:"Gegevensdienstnamen"`
}

type xmlGegevensdienstnaam struct {
	ID   *string `xml:"GegevensdienstId"`
	Naam *string `xml:"Weergavenaam"`
}

// ParseGNL reads a gegevensdienstnamenlijst document.
func ParseGNL(r io.Reader) (GNL, error) {
	var doc xmlGNL
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding GNL: %w", err)
	}
	if doc.XMLName.Space != gnlNamespace {
		return nil, malformed("unexpected GNL namespace %q", doc.XMLName.Space)
	}
	if doc.Namen == nil {
		return nil, malformed("GNL missing Gegevensdienstnamen")
	}

	gnl := make(GNL, len(doc.Namen.Naam))
	for _, naam := range doc.Namen.Naam {
		if naam.ID == nil {
			return nil, malformed("Gegevensdienstnaam missing GegevensdienstId")
		}
		if naam.Naam == nil {
			return nil, malformed("Gegevensdienstnaam %q missing Weergavenaam", *naam.ID)
		}
		gnl[*naam.ID] = *naam.Naam
	}
	return gnl, nil
}
