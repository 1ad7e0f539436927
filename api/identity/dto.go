package identity

// TokenRequest exchanges the operator key for an access token.
type TokenRequest struct {
	Subject string `json:"subject" binding:"required"`
	Key     string `json:"key" binding:"required"`
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}
