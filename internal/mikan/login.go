// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mikan

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

// antiforgeryCookiePrefix identifies the ASP.NET anti-forgery cookie whose
// value doubles as __RequestVerificationToken.
const antiforgeryCookiePrefix = ".AspNetCore.Antiforgery."

// identityCookiePrefix identifies the cookie whose presence on a successful
// login's Set-Cookie marks an authenticated session.
const identityCookiePrefix = ".AspNetCore.Identity.Application"

// Login performs the Mikan login handshake: GET /Account/SignIn to obtain
// an anti-forgery token, then POST {UserName, Password,
// __RequestVerificationToken}. Success is a 302 whose Set-Cookie carries the
// identity cookie.
func (c *Client) Login(ctx context.Context, username, password string) error {
	signInURL := BuildSignInURL(c.baseURL)

	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, signInURL, nil)
	if err != nil {
		return apperror.Wrap(apperror.UserInput, "build sign-in GET request", err)
	}
	getResp, err := c.http.Do(getReq)
	if err != nil {
		return err
	}
	defer getResp.Body.Close()

	var token string
	for _, ck := range getResp.Cookies() {
		if strings.HasPrefix(ck.Name, antiforgeryCookiePrefix) {
			token = ck.Value
			break
		}
	}
	if token == "" {
		return apperror.New(apperror.AuthNeeded, "mikan login: anti-forgery cookie not found")
	}

	form := url.Values{
		"UserName":                 {username},
		"Password":                 {password},
		"__RequestVerificationToken": {token},
	}
	postReq, err := http.NewRequestWithContext(ctx, http.MethodPost, signInURL, strings.NewReader(form.Encode()))
	if err != nil {
		return apperror.Wrap(apperror.UserInput, "build sign-in POST request", err)
	}
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	postResp, err := c.http.DoNoRedirect(postReq)
	if err != nil {
		return err
	}
	defer postResp.Body.Close()

	if postResp.StatusCode != http.StatusFound {
		return apperror.New(apperror.AuthNeeded, "mikan login: expected 302, got "+postResp.Status)
	}

	for _, ck := range postResp.Cookies() {
		if strings.HasPrefix(ck.Name, identityCookiePrefix) {
			return nil
		}
	}
	return apperror.New(apperror.AuthNeeded, "mikan login: identity cookie not set after sign-in")
}

// HasLogin implements has_login: probes /Account/Manage and treats a 302 to
// /Account/SignIn as unauthenticated.
func (c *Client) HasLogin(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, BuildAccountManageURL(c.baseURL), nil)
	if err != nil {
		return false, apperror.Wrap(apperror.UserInput, "build account-manage request", err)
	}

	resp, err := c.http.DoNoRedirect(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return resp.StatusCode == http.StatusOK, nil
	}
	loc := resp.Header.Get("Location")
	return !strings.Contains(loc, "/Account/SignIn"), nil
}
