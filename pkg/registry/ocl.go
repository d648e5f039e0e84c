package registry

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
)

const oclNamespace = "xmlns://afsprakenstelsel.medmij.nl/oauthclientlist/" + version + "/"

// OCL is the allow-list of approved OAuth client hostnames. Membership
// decides whether a client_id may start the flow at all.
type OCL struct {
	clients map[string]string // hostname -> organization name
}

// Contains reports whether the hostname is on the list.
func (o *OCL) Contains(hostname string) bool {
	_, ok := o.clients[hostname]
	return ok
}

// OrganizationName returns the organization registered for the hostname.
func (o *OCL) OrganizationName(hostname string) (string, error) {
	name, ok := o.clients[hostname]
	if !ok {
		return "", fmt.Errorf("no client with hostname %q: %w", hostname, ErrNotFound)
	}
	return name, nil
}

// Hostnames returns all listed hostnames, sorted.
func (o *OCL) Hostnames() []string {
	names := make([]string, 0, len(o.clients))
	for hostname := range o.clients {
		names = append(names, hostname)
	}
	sort.Strings(names)
	return names
}

type xmlOCL struct {
	XMLName xml.Name
	Clients *struct {
		Client []xmlOAuthClient `xml:"OAuthclient"`
	} `xml:"OAuthclients"`
}

type xmlOAuthClient struct {
	Hostname         *string `xml:"Hostname"`
	OrganizationName *string `xml:"OAuthclientOrganisatienaam"`
}

// ParseOCL reads an OAuth client list document.
func ParseOCL(r io.Reader) (*OCL, error) {
	var doc xmlOCL
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding OCL: %w", err)
	}
	if doc.XMLName.Space != oclNamespace {
		return nil, malformed("unexpected OCL namespace %q", doc.XMLName.Space)
	}
	if doc.Clients == nil {
		return nil, malformed("OCL missing OAuthclients")
	}

	clients := make(map[string]string, len(doc.Clients.Client))
	for _, client := range doc.Clients.Client {
		if client.Hostname == nil {
			return nil, malformed("OAuthclient missing Hostname")
		}
		if client.OrganizationName == nil {
			return nil, malformed("OAuthclient %q missing OAuthclientOrganisatienaam", *client.Hostname)
		}
		clients[*client.Hostname] = *client.OrganizationName
	}
	return &OCL{clients: clients}, nil
}
