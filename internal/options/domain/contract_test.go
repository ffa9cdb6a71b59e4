package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	custody "github.com/wyfcoding/optionescrow/internal/custody/domain"
)

func TestOptionContract_CheckExercisable(t *testing.T) {
	exp := time.Unix(100, 0)
	c := &OptionContract{Address: "a", Expiration: exp}

	assert.NoError(t, c.CheckExercisable(time.Unix(99, 0)))
	assert.NoError(t, c.CheckExercisable(exp), "exercise at the expiration instant is allowed")
	assert.ErrorIs(t, c.CheckExercisable(time.Unix(101, 0)), ErrOptionExpired)

	require.NoError(t, c.MarkExercised("bob", time.Unix(50, 0)))
	assert.True(t, c.IsExercised)
	assert.Equal(t, "bob", c.Exerciser)
	assert.ErrorIs(t, c.MarkExercised("carol", time.Unix(60, 0)), ErrOptionAlreadyExercised)
	assert.Equal(t, "bob", c.Exerciser)

	// 过期判断优先于已行权
	assert.ErrorIs(t, c.CheckExercisable(time.Unix(101, 0)), ErrOptionExpired)
}

func TestOptionContract_Status(t *testing.T) {
	c := &OptionContract{Expiration: time.Unix(100, 0)}
	assert.Equal(t, StatusActive, c.Status(time.Unix(100, 0)))
	assert.Equal(t, StatusExpired, c.Status(time.Unix(101, 0)))
	c.IsExercised = true
	assert.Equal(t, StatusExercised, c.Status(time.Unix(101, 0)))
}

func TestValidateExpiration(t *testing.T) {
	now := time.Unix(0, 0)
	assert.ErrorIs(t, ValidateExpiration(now, now), ErrInvalidExpiration)
	assert.ErrorIs(t, ValidateExpiration(now, time.Unix(-1, 0)), ErrInvalidExpiration)
	assert.NoError(t, ValidateExpiration(now, time.Unix(1, 0)))
}

func TestExpiry_WholeSeconds(t *testing.T) {
	c := &OptionContract{Expiration: time.Unix(100, 0)}
	within := time.Unix(100, 400_000_000)

	assert.False(t, c.IsExpired(within))
	assert.NoError(t, c.CheckExercisable(within))
	assert.Equal(t, StatusActive, c.Status(within))
	assert.ErrorIs(t, c.CheckExercisable(time.Unix(101, 0)), ErrOptionExpired)

	assert.ErrorIs(t, ValidateExpiration(within, time.Unix(100, 0)), ErrInvalidExpiration)
	assert.NoError(t, ValidateExpiration(within, time.Unix(101, 0)))

	assert.True(t, ExpiryCutoff(within).Equal(time.Unix(100, 0)))
}

func TestTimeToExpirySeconds(t *testing.T) {
	assert.Equal(t, uint64(31_536_000), TimeToExpirySeconds(time.Unix(0, 0), time.Unix(31_536_000, 0)))
	assert.Zero(t, TimeToExpirySeconds(time.Unix(10, 0), time.Unix(5, 0)))
}

func TestDeriveAddress(t *testing.T) {
	a0, err := DeriveAddress("alice", 0)
	require.NoError(t, err)
	again, err := DeriveAddress("alice", 0)
	require.NoError(t, err)
	assert.Equal(t, a0, again)
	assert.Len(t, a0, 64)
	assert.True(t, custody.IsContractAddress(a0))

	seen := map[string]bool{a0: true}
	for _, in := range []struct {
		creator string
		nonce   uint64
	}{{"alice", 1}, {"bob", 0}, {"alice0", 0}, {"alic", 0}} {
		addr, err := DeriveAddress(in.creator, in.nonce)
		require.NoError(t, err)
		assert.False(t, seen[addr], "collision for %+v", in)
		seen[addr] = true
	}

	_, err = DeriveAddress("", 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCode(t *testing.T) {
	cases := map[error]ErrorCode{
		nil:                                  CodeOK,
		ErrInvalidExpiration:                 CodeInvalidExpiration,
		fmt.Errorf("x: %w", ErrOptionExpired): CodeOptionExpired,
		ErrOptionAlreadyExercised:            CodeOptionAlreadyExercised,
		custody.ErrInsufficientFunds:         CodeInsufficientFunds,
		ErrArithmeticFault:                   CodeArithmeticFault,
		ErrOptionNotFound:                    CodeOptionNotFound,
		custody.ErrUnauthorized:              CodeUnauthorized,
		custody.ErrInvalidAccount:            CodeInvalidRequest,
		fmt.Errorf("opaque"):                 CodeInternal,
	}
	for err, want := range cases {
		assert.Equal(t, want, Code(err), "%v", err)
	}
}
