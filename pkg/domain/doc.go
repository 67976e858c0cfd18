/*
Package domain contains the core types of the framecast engine.

It defines the assets that flow through compositing and the action events that
feed the live counter. This package is kept pure and free of external I/O,
following Hexagonal Architecture principles: decoding lives in the compositor,
persistence lives behind ports.

# Key Entities

  - SourcePhoto: the user's photo bytes plus their intrinsic dimensions.
  - FrameAsset: the campaign frame bytes plus the photo area it reserves.
  - CompositeResult: the encoded PNG produced by one compositing operation.
  - ActionKind / ActionEvent: a committed "download" or "share".
  - ActionCounts: the aggregate shown to users.
*/
package domain
