package auth

import "context"

type subjectKey struct{}

// WithSubject stores the authenticated subject in ctx.
func WithSubject(ctx context.Context, subject *Subject) context.Context {
	if subject == nil {
		return ctx
	}
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the subject of ctx, or nil.
func SubjectFromContext(ctx context.Context) *Subject {
	if ctx == nil {
		return nil
	}
	subject, _ := ctx.Value(subjectKey{}).(*Subject)
	return subject
}

// SubjectName returns the subject name, "anonymous" when there is none.
func SubjectName(ctx context.Context) string {
	if subject := SubjectFromContext(ctx); subject != nil {
		return subject.Name
	}
	return "anonymous"
}
