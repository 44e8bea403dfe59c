package api

import (
	"context"
	"net/url"

	"github.com/spindleworks/spindle-go/internal/idn"
)

type personaResource struct {
	ID          string `json:"id"`
	Idn         string `json:"idn"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (r *personaResource) toPersona() Persona {
	return Persona{
		ID:          r.ID,
		Idn:         idn.Normalize(r.Idn),
		Title:       r.Title,
		Description: r.Description,
	}
}

type attributeResource struct {
	ID    string `json:"id"`
	Idn   string `json:"idn"`
	Title string `json:"title"`
	Value string `json:"value"`
}

func (r *attributeResource) toAttribute() Attribute {
	return Attribute{
		ID:    r.ID,
		Idn:   idn.Normalize(r.Idn),
		Title: r.Title,
		Value: r.Value,
	}
}

type articleResource struct {
	ID      string `json:"id"`
	Idn     string `json:"idn"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (r *articleResource) toArticle() Article {
	return Article{
		ID:      r.ID,
		Idn:     idn.Normalize(r.Idn),
		Title:   r.Title,
		Content: r.Content,
	}
}

type personaListResponse struct {
	Items []personaResource `json:"items"`
}

type attributeListResponse struct {
	Items []attributeResource `json:"items"`
}

type articleListResponse struct {
	Items []articleResource `json:"items"`
}

// ListPersonas returns the customer's personas.
func (c *Client) ListPersonas(ctx context.Context) ([]Persona, error) {
	var resp personaListResponse
	if err := c.get(ctx, "/v1/personas", &resp); err != nil {
		return nil, err
	}

	personas := make([]Persona, 0, len(resp.Items))
	for i := range resp.Items {
		personas = append(personas, resp.Items[i].toPersona())
	}

	return personas, nil
}

// CreatePersona creates a persona and returns the normalized resource,
// including the server-assigned id.
func (c *Client) CreatePersona(ctx context.Context, params PersonaParams) (Persona, error) {
	var resp personaResource
	if err := c.post(ctx, "/v1/personas", params, &resp); err != nil {
		return Persona{}, err
	}

	return resp.toPersona(), nil
}

// UpdatePersona updates a persona's writable fields.
func (c *Client) UpdatePersona(ctx context.Context, id string, params PersonaParams) error {
	return c.put(ctx, "/v1/personas/"+url.PathEscape(id), params)
}

// DeletePersona deletes a persona.
func (c *Client) DeletePersona(ctx context.Context, id string) error {
	return c.del(ctx, "/v1/personas/"+url.PathEscape(id))
}

// ListAttributes returns the customer's attributes.
func (c *Client) ListAttributes(ctx context.Context) ([]Attribute, error) {
	var resp attributeListResponse
	if err := c.get(ctx, "/v1/customer/attributes", &resp); err != nil {
		return nil, err
	}

	attributes := make([]Attribute, 0, len(resp.Items))
	for i := range resp.Items {
		attributes = append(attributes, resp.Items[i].toAttribute())
	}

	return attributes, nil
}

// CreateAttribute creates a customer attribute and returns the normalized
// resource, including the server-assigned id.
func (c *Client) CreateAttribute(ctx context.Context, params AttributeParams) (Attribute, error) {
	var resp attributeResource
	if err := c.post(ctx, "/v1/customer/attributes", params, &resp); err != nil {
		return Attribute{}, err
	}

	return resp.toAttribute(), nil
}

// UpdateAttribute updates a customer attribute's writable fields.
// There is no attribute delete: the remote attribute set only grows or
// changes through this surface.
func (c *Client) UpdateAttribute(ctx context.Context, id string, params AttributeParams) error {
	return c.put(ctx, "/v1/customer/attributes/"+url.PathEscape(id), params)
}

// ListArticles returns the customer's knowledge-base articles. The
// article surface is read-only; there are no write endpoints.
func (c *Client) ListArticles(ctx context.Context) ([]Article, error) {
	var resp articleListResponse
	if err := c.get(ctx, "/v1/akb/articles", &resp); err != nil {
		return nil, err
	}

	articles := make([]Article, 0, len(resp.Items))
	for i := range resp.Items {
		articles = append(articles, resp.Items[i].toArticle())
	}

	return articles, nil
}
