package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiFlag).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
}

// call runs the request and returns the raw body, treating any status
// outside 2xx as an error.
func call(req *resty.Request, method, path string) ([]byte, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}

func doGet(path string) ([]byte, error) {
	return call(newClient().R(), http.MethodGet, path)
}

func doPostJSON(path string, payload interface{}) ([]byte, error) {
	return call(newClient().R().SetBody(payload), http.MethodPost, path)
}

func doPutJSON(path string, payload interface{}) ([]byte, error) {
	return call(newClient().R().SetBody(payload), http.MethodPut, path)
}

func doDelete(path string) error {
	_, err := call(newClient().R(), http.MethodDelete, path)
	return err
}
