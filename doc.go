/*
Package framecast turns user photos into framed campaign images and keeps live
download and share totals.

# Concept

A Studio ties three pieces together:

  - a compositor that cover-fits the photo into the frame's photo area and
    draws the frame on top, producing a square PNG;
  - a frame registry holding the campaign frames and the active one;
  - an action counter that reads totals from an event store and follows the
    events the store pushes.

Downloading or sharing a composite records an action in the background. The
primary action never waits on it and never fails because of it.

# Usage

	frames, err := file.LoadDir("./frames")
	if err != nil {
		log.Fatal(err)
	}
	store := memory.NewStore()

	studio, err := framecast.New(frames, store)
	if err != nil {
		log.Fatal(err)
	}
	defer studio.Close()

	if err := studio.Start(ctx); err != nil {
		log.Fatal(err)
	}

	res, err := studio.Compose(ctx, photoBytes, "")
	if err != nil {
		fmt.Println(export.UserMessage(err))
		return
	}
	dl, _ := studio.Download(ctx, res)
	os.WriteFile(dl.FileName, dl.PNG, 0644)

# Adapters

Event stores live in pkg/adapters/memory, pkg/adapters/redis and
pkg/adapters/sqlite. Inbound surfaces live in pkg/adapters/http (REST + SSE)
and pkg/adapters/mcp (Model Context Protocol tools).
*/
package framecast
