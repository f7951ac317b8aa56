package service

// DefaultKey is the shared secret used when none is configured.
const DefaultKey byte = 'w'

// CipherArgs carries raw bytes so that transformed text, which is not
// necessarily valid UTF-8, survives the JSON payload encoding.
type CipherArgs struct {
	Text []byte
}

type CipherReply struct {
	Text []byte
}

// SecurityCenterImpl applies a keyed byte-wise XOR. It is an involution:
// Encrypt and Decrypt are the same operation. It offers no real secrecy.
type SecurityCenterImpl struct {
	Key byte
}

func (s *SecurityCenterImpl) Encrypt(args *CipherArgs, reply *CipherReply) error {
	reply.Text = Transform(args.Text, s.Key)
	return nil
}

func (s *SecurityCenterImpl) Decrypt(args *CipherArgs, reply *CipherReply) error {
	return s.Encrypt(args, reply)
}

// Transform returns a new slice with every byte of in XORed with key.
func Transform(in []byte, key byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b ^ key
	}
	return out
}
