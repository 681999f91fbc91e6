package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"qna-live/errors"
)

func TestHashPassword_And_Compare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("Sup3r$ecretPass")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	// Then the right password matches and a wrong one doesn't
	ok, err := ComparePassword("Sup3r$ecretPass", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("wrong password", hash)
	req.NoError(err)
	req.False(ok)
}

func TestComparePassword_Rejects_Garbage_Hash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "not-a-hash")
	req.Error(err)
}

func TestGenerateToken_Roundtrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", "Alice", time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(token)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
	req.Equal("Alice", claims.Name)
	req.Equal("qna-live", claims.Issuer)
}

func TestValidateToken_Rejects_Expired(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", "Alice", -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.Error(err)
}

func TestValidateToken_Rejects_Tampering(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", "Alice", time.Hour)
	req.NoError(err)

	_, err = ValidateToken(token + "x")
	req.Error(err)
}

func TestValidateRegister(t *testing.T) {
	req := require.New(t)

	// A complex enough password passes
	req.NoError(ValidateRegister(RegisterRequest{
		Email: "alice@example.com", Name: "Alice", Password: "Sup3r$ecretPass",
	}))

	// Missing complexity maps to the sentinel
	err := ValidateRegister(RegisterRequest{
		Email: "alice@example.com", Name: "Alice", Password: "alllowercasebutlong",
	})
	req.ErrorIs(err, errors.ErrInvalidPassword)

	// Structural failures come from the validator
	req.Error(ValidateRegister(RegisterRequest{
		Email: "not-an-email", Name: "Alice", Password: "Sup3r$ecretPass",
	}))
	req.Error(ValidateRegister(RegisterRequest{
		Email: "alice@example.com", Name: "Alice", Password: "Sh0rt$",
	}))
}

func TestValidateCreateGroup(t *testing.T) {
	req := require.New(t)

	req.NoError(ValidateCreateGroup(CreateGroupRequest{
		Name: "Go Q&A", Members: []string{"alice", "bob"},
	}))

	// One member is not a group
	req.Error(ValidateCreateGroup(CreateGroupRequest{
		Name: "Go Q&A", Members: []string{"alice"},
	}))

	// Blank member ids are rejected by dive
	req.Error(ValidateCreateGroup(CreateGroupRequest{
		Name: "Go Q&A", Members: []string{"alice", ""},
	}))
}

func TestBearerToken(t *testing.T) {
	req := require.New(t)

	req.Equal("abc", BearerToken("Bearer abc", ""))
	req.Equal("abc", BearerToken("abc", ""))
	req.Equal("from-query", BearerToken("", "from-query"))
	req.Empty(BearerToken("", ""))
}
