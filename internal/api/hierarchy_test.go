package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProjects_NormalizesIdns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/projects", r.URL.Path)

		_, _ = w.Write([]byte(`{"items":[
			{"id":"p1","idn":"  Support ","title":"Support"},
			{"id":"p2","idn":"sales","title":"Sales"}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &staticTokens{token: "tok"})

	projects, err := client.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "support", projects[0].Idn)
	assert.Equal(t, "p1", projects[0].ID)
	assert.Equal(t, "Support", projects[0].Title)
}

func TestGetProject_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such project"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &staticTokens{token: "tok"})

	_, err := client.GetProject(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateAgent_ReturnsAssignedID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/agents", r.URL.Path)

		var params AgentParams

		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "p1", params.ProjectID)
		assert.Equal(t, "helper", params.Idn)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"a9","idn":"helper","title":"Helper"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &staticTokens{token: "tok"})

	agent, err := client.CreateAgent(context.Background(), AgentParams{ProjectID: "p1", Idn: "helper", Title: "Helper"})
	require.NoError(t, err)
	assert.Equal(t, "a9", agent.ID)
	assert.Equal(t, "helper", agent.Idn)
}

func TestCreateFlow_NoResponseBody(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/flows", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"agent_id":"a1","idn":"greeting","title":"Greeting"}`, string(body))

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &staticTokens{token: "tok"})

	err := client.CreateFlow(context.Background(), FlowParams{AgentID: "a1", Idn: "greeting", Title: "Greeting"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestListSkills_DecodesPromptScript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/flows/f1/skills", r.URL.Path)

		_, _ = w.Write([]byte(`{"items":[{
			"id":"s1","idn":"greet","title":"Greet","runner_type":"guidance",
			"model":"gpt-4o","parameters":[{"name":"temperature","value":"0.2"}],
			"prompt_script":"{{#system}}hello{{/system}}"
		}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &staticTokens{token: "tok"})

	skills, err := client.ListSkills(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, "guidance", skills[0].RunnerType)
	assert.Equal(t, "{{#system}}hello{{/system}}", skills[0].PromptScript)
	require.Len(t, skills[0].Parameters, 1)
	assert.Equal(t, "temperature", skills[0].Parameters[0].Name)
}

func TestUpdateSkill_OmitsEmptyFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/skills/s1", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"idn":"greet","prompt_script":"v2"}`, string(body))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &staticTokens{token: "tok"})

	err := client.UpdateSkill(context.Background(), "s1", SkillParams{Idn: "greet", PromptScript: "v2"})
	require.NoError(t, err)
}

func TestDeleteSkill_EscapesID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/skills/s%2F1", r.URL.RawPath)

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &staticTokens{token: "tok"})

	require.NoError(t, client.DeleteSkill(context.Background(), "s/1"))
}

func TestListEventsAndStateFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/flows/f1/events":
			_, _ = w.Write([]byte(`{"items":[{"id":"e1","idn":"on_start","title":"On start"}]}`))
		case "/v1/flows/f1/state-fields":
			_, _ = w.Write([]byte(`{"items":[{"id":"sf1","idn":"customer_name","type":"str","default":""}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &staticTokens{token: "tok"})

	events, err := client.ListEvents(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "on_start", events[0].Idn)

	fields, err := client.ListStateFields(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "str", fields[0].Type)
}

func TestCustomerSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /v1/personas":
			_, _ = w.Write([]byte(`{"items":[{"id":"pe1","idn":"Warm","title":"Warm voice"}]}`))
		case "GET /v1/customer/attributes":
			_, _ = w.Write([]byte(`{"items":[{"id":"at1","idn":"region","value":"emea"}]}`))
		case "PUT /v1/customer/attributes/at1":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		case "GET /v1/akb/articles":
			_, _ = w.Write([]byte(`{"items":[{"id":"ar1","idn":"refunds","title":"Refunds","content":"..."}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &staticTokens{token: "tok"})
	ctx := context.Background()

	personas, err := client.ListPersonas(ctx)
	require.NoError(t, err)
	require.Len(t, personas, 1)
	assert.Equal(t, "warm", personas[0].Idn, "idn casing normalized")

	attrs, err := client.ListAttributes(ctx)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "emea", attrs[0].Value)

	require.NoError(t, client.UpdateAttribute(ctx, "at1", AttributeParams{Idn: "region", Value: "apac"}))

	articles, err := client.ListArticles(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "refunds", articles[0].Idn)
}
