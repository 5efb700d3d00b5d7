package expresslink

import "context"

// Shadow operations address the unnamed shadow with index 0 and the named
// shadow configured as Shadow{index} otherwise.

func (el *ExpressLink) shadow(ctx context.Context, index int, op string) (string, error) {
	return el.Cmd(ctx, "SHADOW"+indexSuffix(index)+" "+op)
}

func (el *ExpressLink) shadowDo(ctx context.Context, index int, op string) error {
	_, err := el.shadow(ctx, index, op)
	return err
}

// ShadowInit initializes the shadow; completion is reported as
// EventShadowInit or EventShadowInitFailed.
func (el *ExpressLink) ShadowInit(ctx context.Context, index int) error {
	return el.shadowDo(ctx, index, "INIT")
}

// ShadowDoc requests the shadow document. It arrives as EventShadowDoc and is
// fetched with ShadowGetDoc.
func (el *ExpressLink) ShadowDoc(ctx context.Context, index int) error {
	return el.shadowDo(ctx, index, "DOC")
}

func (el *ExpressLink) ShadowGetDoc(ctx context.Context, index int) (string, error) {
	return el.shadow(ctx, index, "GET DOC")
}

// ShadowUpdate requests an update with a JSON encoded state document.
func (el *ExpressLink) ShadowUpdate(ctx context.Context, index int, doc string) error {
	return el.shadowDo(ctx, index, "UPDATE "+doc)
}

func (el *ExpressLink) ShadowGetUpdate(ctx context.Context, index int) (string, error) {
	return el.shadow(ctx, index, "GET UPDATE")
}

func (el *ExpressLink) ShadowSubscribe(ctx context.Context, index int) error {
	return el.shadowDo(ctx, index, "SUBSCRIBE")
}

func (el *ExpressLink) ShadowUnsubscribe(ctx context.Context, index int) error {
	return el.shadowDo(ctx, index, "UNSUBSCRIBE")
}

func (el *ExpressLink) ShadowGetDelta(ctx context.Context, index int) (string, error) {
	return el.shadow(ctx, index, "GET DELTA")
}

func (el *ExpressLink) ShadowDelete(ctx context.Context, index int) error {
	return el.shadowDo(ctx, index, "DELETE")
}

func (el *ExpressLink) ShadowGetDelete(ctx context.Context, index int) (string, error) {
	return el.shadow(ctx, index, "GET DELETE")
}
