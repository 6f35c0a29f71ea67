// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides session-based authentication.
//
// # Domain Types
//
// User records are created with NewUser, which validates the email and
// requires a non-empty password hash. Session ids and reset tokens are
// handed to clients in plaintext and stored only as SHA-256 digests
// (see HashToken).
//
// # Components
//
//   - PasswordHasher - salted one-way hashing (bcrypt, argon2id)
//   - UserRepository - user persistence (memory, postgres and redis backends)
//   - SessionRegistry - session id to user mapping, one session per user
//   - ResetTokenManager - one-time password reset tokens
//   - Service - register, login, logout, profile and password reset
//   - CredentialVerifier - resolves request credentials (session cookie or
//     Basic header) to the current user
//
// Sessions and reset tokens carry no expiry. They stay valid until logout,
// a newer login, or consumption.
package auth
