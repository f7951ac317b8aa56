package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryResolve(t *testing.T) {
	r := DefaultRegistry(DefaultKey)
	assert.Equal(t, []Code{Compute, SecurityCenter}, r.Codes())

	name, inst, ok := r.Resolve(Compute)
	require.True(t, ok)
	assert.Equal(t, "Compute", name)
	assert.IsType(t, &ComputeImpl{}, inst)

	name, inst, ok = r.Resolve(SecurityCenter)
	require.True(t, ok)
	assert.Equal(t, "SecurityCenter", name)
	assert.Equal(t, &SecurityCenterImpl{Key: DefaultKey}, inst)
}

func TestResolveMintsFreshInstances(t *testing.T) {
	r := DefaultRegistry(DefaultKey)
	_, a, _ := r.Resolve(SecurityCenter)
	_, b, _ := r.Resolve(SecurityCenter)
	assert.NotSame(t, a, b)
}

func TestResolveUnknownCode(t *testing.T) {
	name, inst, ok := DefaultRegistry(DefaultKey).Resolve(Code(42))
	assert.False(t, ok)
	assert.Empty(t, name)
	assert.Nil(t, inst)
}

func TestRegisterDuplicates(t *testing.T) {
	r := DefaultRegistry(DefaultKey)
	assert.Error(t, r.Register(Compute, "Other", func() any { return &ComputeImpl{} }))
	assert.Error(t, r.Register(Code(5), "Compute", func() any { return &ComputeImpl{} }))
	assert.Error(t, r.Register(Code(6), "", nil))
	assert.Panics(t, func() { r.MustRegister(Compute, "Compute", func() any { return nil }) })
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "SecurityCenter", SecurityCenter.String())
	assert.Equal(t, "Code(9)", Code(9).String())
	assert.Equal(t, []Code{Compute, SecurityCenter}, Codes())
}

func TestComputeAdd(t *testing.T) {
	c := &ComputeImpl{}
	for _, tc := range []struct{ a, b, want int }{
		{12, 12, 24},
		{0, 0, 0},
		{-5, 3, -2},
		{-7, -8, -15},
		{1 << 40, 1, 1<<40 + 1},
	} {
		var reply AddReply
		require.NoError(t, c.Add(&AddArgs{A: tc.a, B: tc.b}, &reply))
		assert.Equal(t, tc.want, reply.Result)
	}
}

func TestSecurityCenterInvolution(t *testing.T) {
	s := &SecurityCenterImpl{Key: DefaultKey}
	for _, in := range []string{"Hello, I am Spike!", "", "ünïcödé ✓", "\x00\xff\x77"} {
		var enc, dec, twice CipherReply
		require.NoError(t, s.Encrypt(&CipherArgs{Text: []byte(in)}, &enc))
		require.NoError(t, s.Decrypt(&CipherArgs{Text: enc.Text}, &dec))
		require.NoError(t, s.Encrypt(&CipherArgs{Text: enc.Text}, &twice))

		assert.Equal(t, in, string(dec.Text))
		assert.Equal(t, in, string(twice.Text))
		if in != "" {
			assert.NotEqual(t, in, string(enc.Text))
		}
	}
}

func TestTransformDoesNotAlias(t *testing.T) {
	in := []byte("abc")
	out := Transform(in, 1)
	assert.Equal(t, "abc", string(in))
	assert.Equal(t, []byte{'a' ^ 1, 'b' ^ 1, 'c' ^ 1}, out)
}
