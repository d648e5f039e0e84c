package registry

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
)

const zalNamespace = "xmlns://afsprakenstelsel.medmij.nl/zorgaanbiederslijst/" + version + "/"

// SystemRole ties a resource-access capability to an endpoint within a
// gegevensdienst.
type SystemRole struct {
	Code             string
	ResourceEndpoint string
}

// DataService is one gegevensdienst of a zorgaanbieder. The first entry of
// each endpoint list is the default.
type DataService struct {
	ID                     string
	DisplayName            string
	AuthorizationEndpoints []string
	TokenEndpoints         []string
	SystemRoles            []SystemRole
}

// AuthorizationEndpoint returns the default authorization endpoint.
func (d *DataService) AuthorizationEndpoint() string {
	return d.AuthorizationEndpoints[0]
}

// TokenEndpoint returns the default token endpoint.
func (d *DataService) TokenEndpoint() string {
	return d.TokenEndpoints[0]
}

// Provider is a zorgaanbieder with its gegevensdiensten.
type Provider struct {
	Name         string
	dataServices map[string]*DataService
}

// DataService looks up a gegevensdienst by id.
func (p *Provider) DataService(id string) (*DataService, error) {
	ds, ok := p.dataServices[id]
	if !ok {
		return nil, fmt.Errorf("zorgaanbieder %q has no gegevensdienst %q: %w", p.Name, id, ErrNotFound)
	}
	return ds, nil
}

// DataServiceIDs returns the ids of all gegevensdiensten, sorted.
func (p *Provider) DataServiceIDs() []string {
	ids := make([]string, 0, len(p.dataServices))
	for id := range p.dataServices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ZAL is the zorgaanbiederslijst: every provider a PGO may talk to,
// indexed by name.
type ZAL struct {
	providers map[string]*Provider
}

// Provider looks up a zorgaanbieder by name.
func (z *ZAL) Provider(name string) (*Provider, error) {
	p, ok := z.providers[name]
	if !ok {
		return nil, fmt.Errorf("no zorgaanbieder named %q: %w", name, ErrNotFound)
	}
	return p, nil
}

// Names returns all provider names, sorted.
func (z *ZAL) Names() []string {
	names := make([]string, 0, len(z.providers))
	for name := range z.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type xmlZAL struct {
	XMLName        xml.Name
	Zorgaanbieders *struct {
		Zorgaanbieder []xmlZorgaanbieder `xml:"Zorgaanbieder"`
	} `xml:"Zorgaanbieders"`
}

type xmlZorgaanbieder struct {
	Naam             *string `xml:"Zorgaanbiedernaam"`
	Gegevensdiensten *struct {
		Gegevensdienst []xmlGegevensdienst `xml:"Gegevensdienst"`
	} `xml:"Gegevensdiensten"`
}

type xmlGegevensdienst struct {
	ID                    *string          `xml:"GegevensdienstId"`
	AuthorizationEndpoint *xmlEndpointList `xml:"AuthorizationEndpoint"`
	TokenEndpoint         *xmlEndpointList `xml:"TokenEndpoint"`
	Systeemrollen         *struct {
		Systeemrol []xmlSysteemrol `xml:"Systeemrol"`
	} `xml:"Systeemrollen"`
}

// the endpoint containers hold one uri element per endpoint
type xmlEndpointList struct {
	URIs []string `xml:",any"`
}

type xmlSysteemrol struct {
	Code             *string `xml:"Systeemrolcode"`
	ResourceEndpoint *string `xml:"ResourceEndpoint"`
}

// ParseZAL reads a zorgaanbiederslijst document, resolving display names
// through the GNL.
func ParseZAL(r io.Reader, gnl GNL) (*ZAL, error) {
	var doc xmlZAL
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding ZAL: %w", err)
	}
	if doc.XMLName.Space != zalNamespace {
		return nil, malformed("unexpected ZAL namespace %q", doc.XMLName.Space)
	}
	if doc.Zorgaanbieders == nil {
		return nil, malformed("ZAL missing Zorgaanbieders")
	}

	providers := make(map[string]*Provider, len(doc.Zorgaanbieders.Zorgaanbieder))
	for _, za := range doc.Zorgaanbieders.Zorgaanbieder {
		provider, err := parseZorgaanbieder(za, gnl)
		if err != nil {
			return nil, err
		}
		providers[provider.Name] = provider
	}
	return &ZAL{providers: providers}, nil
}

func parseZorgaanbieder(za xmlZorgaanbieder, gnl GNL) (*Provider, error) {
	if za.Naam == nil {
		return nil, malformed("Zorgaanbieder missing Zorgaanbiedernaam")
	}
	if za.Gegevensdiensten == nil {
		return nil, malformed("Zorgaanbieder %q missing Gegevensdiensten", *za.Naam)
	}

	provider := &Provider{
		Name:         *za.Naam,
		dataServices: make(map[string]*DataService, len(za.Gegevensdiensten.Gegevensdienst)),
	}
	for _, gd := range za.Gegevensdiensten.Gegevensdienst {
		ds, err := parseGegevensdienst(gd, gnl, provider.Name)
		if err != nil {
			return nil, err
		}
		provider.dataServices[ds.ID] = ds
	}
	return provider, nil
}

func parseGegevensdienst(gd xmlGegevensdienst, gnl GNL, providerName string) (*DataService, error) {
	if gd.ID == nil {
		return nil, malformed("Gegevensdienst of %q missing GegevensdienstId", providerName)
	}
	if gd.AuthorizationEndpoint == nil || len(gd.AuthorizationEndpoint.URIs) == 0 {
		return nil, malformed("Gegevensdienst %q missing AuthorizationEndpoint", *gd.ID)
	}
	if gd.TokenEndpoint == nil || len(gd.TokenEndpoint.URIs) == 0 {
		return nil, malformed("Gegevensdienst %q missing TokenEndpoint", *gd.ID)
	}
	if gd.Systeemrollen == nil {
		return nil, malformed("Gegevensdienst %q missing Systeemrollen", *gd.ID)
	}

	ds := &DataService{
		ID:                     *gd.ID,
		DisplayName:            gnl.DisplayName(*gd.ID),
		AuthorizationEndpoints: gd.AuthorizationEndpoint.URIs,
		TokenEndpoints:         gd.TokenEndpoint.URIs,
	}
	for _, rol := range gd.Systeemrollen.Systeemrol {
		if rol.Code == nil {
			return nil, malformed("Systeemrol of gegevensdienst %q missing Systeemrolcode", *gd.ID)
		}
		if rol.ResourceEndpoint == nil {
			return nil, malformed("Systeemrol %q missing ResourceEndpoint", *rol.Code)
		}
		ds.SystemRoles = append(ds.SystemRoles, SystemRole{
			Code:             *rol.Code,
			ResourceEndpoint: *rol.ResourceEndpoint,
		})
	}
	return ds, nil
}
