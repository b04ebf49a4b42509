package pedigree

import "herdbook/pkg/domain"

type ancestry map[domain.Slot]string

func animal(id, name string, gender domain.Gender, refs ancestry) domain.Animal {
	a := domain.Animal{
		Base:    domain.Base{ID: id},
		Name:    name,
		Species: "goat",
		Gender:  gender,
		Status:  domain.StatusActive,
	}
	for slot, ref := range refs {
		a.Pedigree.Set(slot, ref)
	}
	return a
}

type recordingLogger struct {
	messages []string
}

func (r *recordingLogger) Warn(msg string, _ ...any) {
	r.messages = append(r.messages, msg)
}
